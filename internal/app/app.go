// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryPreview/internal/api"
	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/di"
	"github.com/Corphon/StoryPreview/internal/services"
	"github.com/Corphon/StoryPreview/internal/storage"
	"github.com/Corphon/StoryPreview/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// App 预览服务器
type App struct {
	config   *config.Config
	router   *gin.Engine
	server   *http.Server
	stopChan chan struct{}
	stopOnce sync.Once
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp 获取应用单例
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{stopChan: make(chan struct{})}
	}
	return instance
}

// Initialize 加载配置、初始化日志和服务并创建路由
func (a *App) Initialize() error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}
	return a.initialize(cfg)
}

func (a *App) initialize(cfg *config.Config) error {
	config.SetCurrentConfig(cfg)
	a.config = cfg

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	if err := InitServices(cfg); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	utils.GetLogger().Info("应用初始化完成", map[string]interface{}{
		"port":        cfg.Port,
		"scripts_dir": cfg.ScriptsDir,
		"debug":       cfg.DebugMode,
	})
	return nil
}

// initLogger 输出到标准输出和 logs/server_<日期>.log
func initLogger(cfg *config.Config) error {
	logFile := ""
	if cfg.LogDir != "" {
		logFile = cfg.LogFile("server")
	}
	return utils.InitLogger(utils.LoggerConfig{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		File:     logFile,
	})
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices(cfg *config.Config) error {
	container := di.GetContainer()
	logger := utils.GetLogger()

	if err := os.MkdirAll(cfg.ScriptsDir, 0755); err != nil {
		return fmt.Errorf("创建故事目录失败: %w", err)
	}

	documents := storage.NewDocumentCache(cfg.DocumentCacheTTL)
	container.Register(di.ServiceDocuments, documents)

	preview, err := services.NewPreviewService(cfg.ScriptsDir, documents)
	if err != nil {
		return err
	}
	container.Register(di.ServicePreview, preview.WithLogger(logger))

	// 替换旧的会话管理器时先关闭它
	if old, err := di.Resolve[*api.SessionManager](container, di.ServiceSessions); err == nil {
		old.Shutdown()
	}
	container.Register(di.ServiceSessions, api.NewSessionManager(logger))
	container.Register(di.ServiceConfig, cfg)

	logger.Info("服务初始化完成", map[string]interface{}{"services": container.GetNames()})
	return nil
}

// Run 启动HTTP服务器，直到收到中断信号或 Stop 被调用
func (a *App) Run() error {
	if a.server == nil {
		return errors.New("应用尚未初始化")
	}
	logger := utils.GetLogger()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("服务器启动", map[string]interface{}{
			"addr": a.server.Addr,
			"url":  fmt.Sprintf("http://localhost:%s/api/preview", a.config.Port),
		})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("收到退出信号", map[string]interface{}{"signal": sig.String()})
	case <-a.stopChan:
	}

	return a.shutdown()
}

// Stop 请求停止服务器
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

func (a *App) shutdown() error {
	logger := utils.GetLogger()
	logger.Info("正在关闭服务器...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sessions, err := di.Resolve[*api.SessionManager](di.GetContainer(), di.ServiceSessions); err == nil {
		sessions.Shutdown()
	}

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	logger.Info("服务器已关闭", nil)
	_ = logger.Sync()
	return nil
}

// Router 返回 gin 引擎
func (a *App) Router() *gin.Engine {
	return a.router
}
