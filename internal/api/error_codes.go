// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest        = "BAD_REQUEST"
	ErrorNotFound          = "NOT_FOUND"
	ErrorInternalError     = "INTERNAL_ERROR"
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// 预览相关错误
	ErrorStoryNotFound     = "STORY_NOT_FOUND"
	ErrorAssetNotFound     = "ASSET_NOT_FOUND"
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
)

// WebSocket 消息类型
const (
	MessageTypeView  = "view"
	MessageTypeError = "error"
)

// WebSocket 客户端动作
const (
	ActionAdvance = "advance"
	ActionAuto    = "auto"
	ActionRestart = "restart"
	ActionJump    = "jump"
)
