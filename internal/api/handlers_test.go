package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/models"
	"github.com/Corphon/StoryPreview/internal/services"
	"github.com/Corphon/StoryPreview/internal/storage"
	"github.com/Corphon/StoryPreview/internal/utils"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testConfig(scriptsDir string) *config.Config {
	return &config.Config{
		Port:                "0",
		ScriptsDir:          scriptsDir,
		DebugMode:           false,
		AutoAdvanceInterval: 20 * time.Millisecond,
		DocumentCacheTTL:    time.Minute,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
	}
}

// newTestRouter 创建带 demo 故事的路由
func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *Handler) {
	t.Helper()
	root := cfg.ScriptsDir
	story := filepath.Join(root, "demo")

	writeFixture(t, filepath.Join(story, "story_config.yaml"), "title: 演示\nintro_chapter: intro.yaml\n")
	writeFixture(t, filepath.Join(story, "Chapters", "intro.yaml"), `
events:
  - type: narration
    text: 第一句
  - type: background
    imagePath: bg/room.png
  - type: dialogue
    character: alice
    text: 你好
  - type: end
`)
	writeFixture(t, filepath.Join(story, "Chapters", "bad.yaml"), "events: [")
	writeFixture(t, filepath.Join(story, "Assets", "bg", "room.png"), "room-png")
	writeFixture(t, filepath.Join(story, "Characters", "alice", "avatar", "正常.png"), "alice-normal")
	writeFixture(t, filepath.Join(story, "Characters", "alice", "avatar", "开心.png"), "alice-happy")

	logger := utils.NewNopLogger()
	preview, err := services.NewPreviewService(root, storage.NewDocumentCache(time.Minute))
	require.NoError(t, err)
	preview.WithLogger(logger)

	sessions := NewSessionManager(logger)
	t.Cleanup(sessions.Shutdown)

	handler := NewHandler(preview, sessions, NewResponseHelper(cfg.DebugMode, logger), cfg.AutoAdvanceInterval)
	return NewRouter(cfg, handler, logger), handler
}

func doGet(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.NotEmpty(t, resp.RequestID)
	return *resp.Error
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestGetPreviewData(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview/demo/data")
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	cfg := doc["config"].(map[string]interface{})
	assert.Equal(t, "intro.yaml", cfg["intro_chapter"])

	chapters := doc["chapters"].(map[string]interface{})
	assert.Len(t, chapters, 2)
	intro := chapters["intro.yaml"].(map[string]interface{})
	assert.Len(t, intro["events"], 4)
	bad := chapters["bad.yaml"].(map[string]interface{})
	assert.Empty(t, bad["events"])
	assert.NotEmpty(t, bad["error"])

	assets := doc["assets"].(map[string]interface{})
	assert.Equal(t, "/api/preview/demo/assets/bg/room.png", assets["bg/room.png"])
	assert.Equal(t, "/api/preview/demo/character/alice", assets["alice"])

	characters := doc["characters"].([]interface{})
	require.Len(t, characters, 1)
	assert.Equal(t, "alice", characters[0].(map[string]interface{})["id"])
}

func TestGetPreviewDataUnknownStory(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview/nope/data")
	assert.Equal(t, http.StatusNotFound, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, ErrorStoryNotFound, apiErr.Code)
}

func TestListStories(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                  `json:"success"`
		Data    []models.StorySummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "demo", resp.Data[0].ID)
	assert.Equal(t, "演示", resp.Data[0].Title)
}

func TestPreviewPage(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview/demo")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "/data")
}

func TestGetAsset(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview/demo/assets/bg/room.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-png", w.Body.String())

	// 文件名后缀回退
	w = doGet(r, "/api/preview/demo/assets/room.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-png", w.Body.String())

	w = doGet(r, "/api/preview/demo/assets/missing.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorAssetNotFound, decodeError(t, w).Code)
}

func TestGetCharacterImages(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/api/preview/demo/character/alice/开心")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice-happy", w.Body.String())

	w = doGet(r, "/api/preview/demo/character/alice/生气")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice-normal", w.Body.String())

	w = doGet(r, "/api/preview/demo/character/alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice-normal", w.Body.String())

	w = doGet(r, "/api/preview/demo/character/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorCharacterNotFound, decodeError(t, w).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 2
	r, _ := newTestRouter(t, cfg)

	assert.Equal(t, http.StatusOK, doGet(r, "/api/preview").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/api/preview").Code)

	w := doGet(r, "/api/preview")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrorRateLimitExceeded, decodeError(t, w).Code)

	// /health 不受限流影响
	assert.Equal(t, http.StatusOK, doGet(r, "/health").Code)
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))

	w := doGet(r, "/nothing/here")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorNotFound, decodeError(t, w).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t.TempDir()))
	doGet(r, "/api/preview/demo/data")

	w := doGet(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "story_preview_loads_total")
}
