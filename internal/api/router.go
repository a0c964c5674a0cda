// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/di"
	"github.com/Corphon/StoryPreview/internal/services"
	"github.com/Corphon/StoryPreview/internal/utils"
)

// SetupRouter 从容器获取服务并配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	preview, err := di.Resolve[*services.PreviewService](container, di.ServicePreview)
	if err != nil {
		return nil, err
	}
	sessions, err := di.Resolve[*SessionManager](container, di.ServiceSessions)
	if err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	handler := NewHandler(preview, sessions, NewResponseHelper(cfg.DebugMode, logger), cfg.AutoAdvanceInterval)
	return NewRouter(cfg, handler, logger), nil
}

// NewRouter 创建 gin 引擎并注册全部路由
func NewRouter(cfg *config.Config, handler *Handler, logger *utils.Logger) *gin.Engine {
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger.Zap()))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	// /metrics 以及请求计数
	p := ginprometheus.NewPrometheus("gin")
	p.Use(r)

	r.GET("/health", handler.Health)
	r.HEAD("/health", handler.Health)

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	api := r.Group("/api")
	api.Use(limiter.Middleware(handler.Response))
	{
		// 调试路由
		api.GET("/ws/status", handler.GetWebSocketStatus)

		previewGroup := api.Group("/preview")
		{
			previewGroup.GET("", handler.ListStories)
			previewGroup.GET("/:story", handler.PreviewPage)
			previewGroup.GET("/:story/data", handler.GetPreviewData)
			previewGroup.GET("/:story/assets/*path", handler.GetAsset)
			previewGroup.GET("/:story/character/:id", handler.GetCharacterImage)
			previewGroup.GET("/:story/character/:id/:emotion", handler.GetCharacterEmotionImage)
			previewGroup.GET("/:story/play", handler.PlaybackWebSocket)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		handler.Response.Error(c, http.StatusNotFound, ErrorNotFound, "接口不存在")
	})

	return r
}

// corsConfig 未配置来源时允许所有来源
func corsConfig(allowedOrigins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}
