package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/di"
	"github.com/Corphon/StoryPreview/internal/services"
)

// setupTest 重置单例并返回指向临时目录的配置
func setupTest(t *testing.T) *config.Config {
	t.Helper()
	instance = nil
	t.Cleanup(func() { instance = nil })

	tempDir := t.TempDir()
	return &config.Config{
		Port:                "0",
		ScriptsDir:          filepath.Join(tempDir, "scripts"),
		LogDir:              filepath.Join(tempDir, "logs"),
		LogLevel:            "error",
		LogEncoding:         "console",
		AutoAdvanceInterval: time.Second,
		DocumentCacheTTL:    time.Minute,
		RateLimitRPS:        100,
		RateLimitBurst:      100,
	}
}

func TestGetApp(t *testing.T) {
	setupTest(t)

	app1 := GetApp()
	require.NotNil(t, app1)
	assert.Same(t, app1, GetApp())
	assert.NotNil(t, app1.stopChan)
}

func TestInitialize(t *testing.T) {
	cfg := setupTest(t)
	app := GetApp()
	require.NoError(t, app.initialize(cfg))

	// 目录和日志文件已创建
	assert.DirExists(t, cfg.ScriptsDir)
	assert.FileExists(t, cfg.LogFile("server"))

	container := di.GetContainer()
	for _, name := range []string{di.ServiceConfig, di.ServiceDocuments, di.ServicePreview, di.ServiceSessions} {
		assert.True(t, container.Has(name), name)
	}
	preview, err := di.Resolve[*services.PreviewService](container, di.ServicePreview)
	require.NoError(t, err)
	abs, _ := filepath.Abs(cfg.ScriptsDir)
	assert.Equal(t, abs, preview.Storage.BaseDir)

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ScriptsDir, "demo"), 0755))

	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/preview/demo/data", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunWithoutInitialize(t *testing.T) {
	setupTest(t)
	assert.Error(t, GetApp().Run())
}

func TestRunAndStop(t *testing.T) {
	cfg := setupTest(t)
	app := GetApp()
	require.NoError(t, app.initialize(cfg))

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	app.Stop()
	app.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
