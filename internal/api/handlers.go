// internal/api/handlers.go
package api

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryPreview/internal/services"
)

//go:embed web/preview.html
var previewPage []byte

// Handler 处理预览相关请求
type Handler struct {
	Preview  *services.PreviewService
	Sessions *SessionManager
	Response *ResponseHelper

	// 播放会话的自动前进间隔
	AutoInterval time.Duration
}

// NewHandler 创建处理器
func NewHandler(preview *services.PreviewService, sessions *SessionManager, response *ResponseHelper, autoInterval time.Duration) *Handler {
	return &Handler{
		Preview:      preview,
		Sessions:     sessions,
		Response:     response,
		AutoInterval: autoInterval,
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ListStories 列出所有故事
func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.Preview.ListStories(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, stories)
}

// PreviewPage 返回播放页面，页面从自身URL推导故事ID
func (h *Handler) PreviewPage(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", previewPage)
}

// GetPreviewData 返回故事的完整预览数据
//
// 返回原始文档而不是 APIResponse 包装，页面直接使用。
func (h *Handler) GetPreviewData(c *gin.Context) {
	data, err := h.Preview.LoadPreviewData(c.Request.Context(), c.Param("story"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetAsset 返回资源文件
func (h *Handler) GetAsset(c *gin.Context) {
	path, err := h.Preview.ResolveAsset(c.Param("story"), c.Param("path"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	c.File(path)
}

// GetCharacterEmotionImage 返回角色指定情绪的头像
func (h *Handler) GetCharacterEmotionImage(c *gin.Context) {
	path, err := h.Preview.ResolveCharacterEmotionImage(c.Param("story"), c.Param("id"), c.Param("emotion"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	c.File(path)
}

// GetCharacterImage 返回角色默认头像
func (h *Handler) GetCharacterImage(c *gin.Context) {
	path, err := h.Preview.ResolveCharacterImage(c.Param("story"), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	c.File(path)
}

// GetWebSocketStatus 播放会话状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.Sessions.GetStatus()
	status["timestamp"] = time.Now().Format(time.RFC3339)
	c.JSON(http.StatusOK, status)
}
