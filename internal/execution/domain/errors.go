package domain

import "errors"

var (
	// ErrConfiguration 执行参数非法，启动阶段即失败
	ErrConfiguration = errors.New("execution: invalid configuration")
	// ErrBrokerRejection 券商拒绝下单或撤单
	ErrBrokerRejection = errors.New("execution: broker rejection")
	// ErrStaleTarget 工作订单对应的目标已不存在或已被替换
	ErrStaleTarget = errors.New("execution: stale target")
	// ErrQuoteUnavailable 无可用报价
	ErrQuoteUnavailable = errors.New("execution: quote unavailable")
	// ErrOrderNotFound 工作订单或券商订单不存在
	ErrOrderNotFound = errors.New("execution: order not found")
	// ErrInvalidTarget 目标参数非法
	ErrInvalidTarget = errors.New("execution: invalid target")
)
