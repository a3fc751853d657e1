package xstore

import (
	"errors"

	"github.com/omeyang/xoption/internal/storageopt"
)

var (
	// ErrSessionInUse 会话已被打开。
	ErrSessionInUse = errors.New("xstore: session already in use")

	// ErrSessionNotFound 会话不存在。
	ErrSessionNotFound = errors.New("xstore: session not found")

	// ErrInvalidSession 会话 ID 为空或包含非法字符。
	ErrInvalidSession = errors.New("xstore: invalid session id")

	// ErrClosed 驱动、注册表或会话已关闭。
	ErrClosed = errors.New("xstore: closed")

	// ErrUnknownBackend 未知的后端名称。
	ErrUnknownBackend = errors.New("xstore: unknown backend")

	// ErrInvalidConfig 后端配置不合法。
	ErrInvalidConfig = errors.New("xstore: invalid config")

	// ErrCorrupted 记录无法解码。
	ErrCorrupted = errors.New("xstore: corrupted record")

	// ErrCircuitOpen 驱动熔断中，调用未发往后端。
	ErrCircuitOpen = storageopt.ErrCircuitOpen
)
