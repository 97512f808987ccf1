// Package utils 提供 ID（雪花）生成等通用工具
package utils

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// maxNodeID 节点号位数取自 snowflake.NodeBits，默认 10 位
var maxNodeID int64 = -1 ^ (-1 << snowflake.NodeBits)

// SnowflakeID 雪花算法 ID 生成器
type SnowflakeID struct {
	node *snowflake.Node
}

// NewSnowflakeID 创建雪花 ID 生成器，节点号超出 10 位时截断
func NewSnowflakeID(nodeID int64) *SnowflakeID {
	node, err := snowflake.NewNode(nodeID & maxNodeID)
	if err != nil {
		panic(fmt.Sprintf("snowflake node %d: %v", nodeID, err))
	}
	return &SnowflakeID{node: node}
}

// Generate 生成雪花 ID
func (s *SnowflakeID) Generate() int64 {
	return s.node.Generate().Int64()
}

// Prefixed 返回带前缀的 ID 生成函数，例如 "WO-1234"
func (s *SnowflakeID) Prefixed(prefix string) func() string {
	return func() string {
		return prefix + "-" + s.node.Generate().String()
	}
}
