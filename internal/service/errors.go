// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务层统一的哨兵错误，由 handler 映射为对应的 HTTP 状态码。
var (
	// ErrInvalidRequest 表示入参缺失或形态不合法，在发起任何外部调用之前返回。
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionBusy 表示该会话已有一次估算调用在途。
	ErrSessionBusy = errors.New("an estimation for this session is already in flight")

	// ErrSummaryNotReady 表示摘要发送的前置条件尚未满足。
	ErrSummaryNotReady = errors.New("summary prerequisites are not met")

	// ErrSessionNotFound 表示会话不存在或已过期。
	ErrSessionNotFound = errors.New("session not found")
)
