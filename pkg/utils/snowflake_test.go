package utils

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestSnowflakeID_Unique(t *testing.T) {
	gen := NewSnowflakeID(1)
	seen := make(map[int64]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := gen.Generate()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestSnowflakeID_Prefixed(t *testing.T) {
	next := NewSnowflakeID(7).Prefixed("WO")
	a, b := next(), next()
	assert.True(t, strings.HasPrefix(a, "WO-"))
	assert.NotEqual(t, a, b)

	id, err := snowflake.ParseString(strings.TrimPrefix(a, "WO-"))
	assert.NoError(t, err)
	assert.Equal(t, int64(7), id.Node())
}

func TestSnowflakeID_NodeMasked(t *testing.T) {
	id := snowflake.ParseInt64(NewSnowflakeID(1<<10 + 3).Generate())
	assert.Equal(t, int64(3), id.Node(), "node id keeps the low 10 bits")
}
