// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Corphon/StoryPreview/internal/app"
	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/di"
	"github.com/Corphon/StoryPreview/internal/services"
	"github.com/Corphon/StoryPreview/internal/utils"
)

func main() {
	log.Println("🚀 启动 StoryPreview 服务器...")

	application := app.GetApp()
	if err := application.Initialize(); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	logger := utils.GetLogger()

	if err := performHealthCheck(); err != nil {
		logger.Warn("服务健康检查警告", map[string]interface{}{"error": err})
	}

	if err := ensureSampleStory(); err != nil {
		logger.Warn("创建示例故事失败", map[string]interface{}{"error": err})
	}

	if err := application.Run(); err != nil {
		logger.Error("服务器异常退出", map[string]interface{}{"error": err})
		_ = logger.Sync()
		log.Fatalf("❌ %v", err)
	}
}

// 健康检查函数
func performHealthCheck() error {
	container := di.GetContainer()

	required := []string{di.ServiceConfig, di.ServiceDocuments, di.ServicePreview, di.ServiceSessions}
	for _, name := range required {
		if !container.Has(name) {
			return fmt.Errorf("服务 %s 未注册", name)
		}
	}

	preview, err := di.Resolve[*services.PreviewService](container, di.ServicePreview)
	if err != nil {
		return err
	}
	if !preview.Storage.DirExists() {
		return fmt.Errorf("故事目录不存在: %s", preview.Storage.BaseDir)
	}
	return nil
}

// ensureSampleStory 故事目录为空时生成示例故事，方便首次启动直接预览
func ensureSampleStory() error {
	preview, err := di.Resolve[*services.PreviewService](di.GetContainer(), di.ServicePreview)
	if err != nil {
		return err
	}

	stories, err := preview.ListStories(context.Background())
	if err != nil || len(stories) > 0 {
		return err
	}

	if err := preview.CreateSampleStory(services.SampleStoryID); err != nil {
		return err
	}

	port := "8000"
	if cfg := config.GetCurrentConfig(); cfg != nil {
		port = cfg.Port
	}
	utils.GetLogger().Info("已生成示例故事", map[string]interface{}{
		"url": fmt.Sprintf("http://localhost:%s%s", port, preview.StoryBaseURL(services.SampleStoryID)),
	})
	return nil
}
