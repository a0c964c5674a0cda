// internal/services/preview_service.go
package services

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/StoryPreview/internal/errors"
	"github.com/Corphon/StoryPreview/internal/models"
	"github.com/Corphon/StoryPreview/internal/storage"
	"github.com/Corphon/StoryPreview/internal/utils"
)

// 故事目录结构
const (
	StoryConfigFile = "story_config.yaml"
	ChaptersDir     = "Chapters"
	AssetsDir       = "Assets"
	CharactersDir   = "Characters"
	AvatarDir       = "avatar"

	// DefaultEmotion 情绪图片缺失时优先使用的默认情绪
	DefaultEmotion = "正常"

	// DefaultURLPrefix 预览接口的挂载点
	DefaultURLPrefix = "/api/preview"

	maxParseWorkers = 8
)

var (
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

	// 角色默认图片的候选名称，按顺序尝试
	defaultEmotionNames = []string{"正常", "默认", "default", "Default", "normal", "Normal"}
	defaultEmotionExts  = []string{".png", ".jpg", ".jpeg"}
)

// PreviewService 把故事目录映射为预览数据
type PreviewService struct {
	Storage   *storage.FileStorage
	Documents *storage.DocumentCache
	URLPrefix string

	locks  *LockManager
	logger *utils.Logger
}

// NewPreviewService 创建预览服务
func NewPreviewService(scriptsDir string, documents *storage.DocumentCache) (*PreviewService, error) {
	if scriptsDir == "" {
		scriptsDir = "scripts"
	}

	fileStorage, err := storage.NewFileStorage(scriptsDir)
	if err != nil {
		return nil, err
	}

	return &PreviewService{
		Storage:   fileStorage,
		Documents: documents,
		URLPrefix: DefaultURLPrefix,
		locks:     NewLockManager(),
		logger:    utils.GetLogger(),
	}, nil
}

// WithLogger 替换日志器
func (s *PreviewService) WithLogger(logger *utils.Logger) *PreviewService {
	s.logger = logger
	return s
}

// StoryBaseURL 返回故事的URL前缀，例如 /api/preview/demo
func (s *PreviewService) StoryBaseURL(storyID string) string {
	return strings.TrimRight(s.URLPrefix, "/") + "/" + url.PathEscape(storyID)
}

// StoryDir 返回故事目录，不存在时返回 NotFound
func (s *PreviewService) StoryDir(storyID string) (string, error) {
	if !isPlainName(storyID) {
		return "", apperrors.NewResourceNotFoundError("story", fmt.Sprintf("Story not found: %s", storyID))
	}

	dir, err := s.Storage.Resolve(storyID)
	if err != nil || !storage.IsDir(dir) {
		return "", apperrors.NewResourceNotFoundError("story", fmt.Sprintf("Story not found: %s", storyID))
	}
	return dir, nil
}

// ListStories 列出所有故事
func (s *PreviewService) ListStories(ctx context.Context) ([]models.StorySummary, error) {
	ids, err := s.Storage.ListDirs()
	if err != nil {
		return nil, apperrors.NewProcessingError("读取故事目录失败", err)
	}

	stories := make([]models.StorySummary, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(s.Storage.BaseDir, id)
		summary := models.StorySummary{ID: id, Title: id}

		config, exists, _ := s.loadConfig(dir)
		summary.HasConfig = exists
		if title := config.Title(); title != "" {
			summary.Title = title
		}

		files, err := collectChapterFiles(filepath.Join(dir, ChaptersDir))
		if err != nil {
			s.logger.Warn("统计章节失败", map[string]interface{}{"story": id, "error": err})
		}
		summary.ChapterCount = len(files)

		stories = append(stories, summary)
	}
	return stories, nil
}

// LoadPreviewData 读取配置、全部章节、资源列表和角色列表
func (s *PreviewService) LoadPreviewData(ctx context.Context, storyID string) (*models.PreviewData, error) {
	dir, err := s.StoryDir(storyID)
	if err != nil {
		utils.PreviewLoadsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	var data *models.PreviewData
	err = s.locks.ExecuteWithStoryReadLock(storyID, func() error {
		var loadErr error
		data, loadErr = s.loadPreviewData(ctx, storyID, dir)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PreviewService) loadPreviewData(ctx context.Context, storyID, dir string) (*models.PreviewData, error) {
	data := models.NewPreviewData()

	config, _, configErr := s.loadConfig(dir)
	data.Config = config
	if configErr != nil {
		data.ConfigError = configErr.Error()
		s.logger.Warn("故事配置解析失败", map[string]interface{}{"story": storyID, "error": configErr})
	}

	chapters, err := s.loadChapters(ctx, storyID, filepath.Join(dir, ChaptersDir))
	if err != nil {
		utils.PreviewLoadsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewProcessingError("加载章节失败", err)
	}
	data.Chapters = chapters

	base := s.StoryBaseURL(storyID)
	if err := s.scanAssets(filepath.Join(dir, AssetsDir), base, data.Assets); err != nil {
		s.logger.Warn("扫描资源目录失败", map[string]interface{}{"story": storyID, "error": err})
	}

	characters, err := s.scanCharacters(filepath.Join(dir, CharactersDir), base, data.Assets)
	if err != nil {
		s.logger.Warn("扫描角色目录失败", map[string]interface{}{"story": storyID, "error": err})
	}
	data.Characters = characters

	utils.PreviewLoadsTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("预览数据已加载", map[string]interface{}{
		"story":      storyID,
		"chapters":   len(data.Chapters),
		"assets":     len(data.Assets),
		"characters": len(data.Characters),
	})
	return data, nil
}

// loadConfig 读取 story_config.yaml；文件不存在时返回空配置
func (s *PreviewService) loadConfig(dir string) (models.StoryConfig, bool, error) {
	configPath := filepath.Join(dir, StoryConfigFile)
	if !storage.IsRegularFile(configPath) {
		return models.StoryConfig{}, false, nil
	}

	doc, err := storage.LoadYAML[models.StoryConfig](s.Documents, configPath)
	if err != nil {
		return models.StoryConfig{}, true, err
	}
	if doc == nil || *doc == nil {
		return models.StoryConfig{}, true, nil
	}

	// 缓存中的文档是共享的，这里复制一份
	normalized, _ := models.NormalizeValue(map[string]interface{}(*doc)).(map[string]interface{})
	return models.StoryConfig(normalized), true, nil
}

// collectChapterFiles 递归收集 .yaml/.yml 文件，返回斜杠分隔的相对路径
func collectChapterFiles(chaptersDir string) ([]string, error) {
	if !storage.IsDir(chaptersDir) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(chaptersDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == chaptersDir {
				return err
			}
			// 无法读取的子目录跳过
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			return nil
		}
		rel, err := filepath.Rel(chaptersDir, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

// loadChapters 并发解析章节，单个文件失败时记录为带错误标记的空章节
func (s *PreviewService) loadChapters(ctx context.Context, storyID, chaptersDir string) (map[string]*models.Chapter, error) {
	chapters := make(map[string]*models.Chapter)

	files, err := collectChapterFiles(chaptersDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return chapters, nil
	}

	results := make([]*models.Chapter, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParseWorkers)

	for i, rel := range files {
		i, rel := i, rel
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			fullPath := filepath.Join(chaptersDir, filepath.FromSlash(rel))
			chapter, err := storage.LoadYAML[models.Chapter](s.Documents, fullPath)
			if err != nil {
				utils.ChapterParseFailuresTotal.Inc()
				s.logger.Warn("章节解析失败", map[string]interface{}{
					"story":   storyID,
					"chapter": rel,
					"error":   err,
				})
				results[i] = models.NewBrokenChapter(err)
				return nil
			}
			results[i] = chapter
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, rel := range files {
		chapters[rel] = results[i]
	}
	return chapters, nil
}

// scanAssets 以相对路径登记 Assets 下的每个文件
func (s *PreviewService) scanAssets(assetsDir, base string, assets map[string]string) error {
	if !storage.IsDir(assetsDir) {
		return nil
	}

	return filepath.WalkDir(assetsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == assetsDir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(assetsDir, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		assets[key] = base + "/assets/" + escapePath(key)
		return nil
	})
}

// scanCharacters 列出角色，并为有头像的角色登记别名
func (s *PreviewService) scanCharacters(charactersDir, base string, assets map[string]string) ([]models.Character, error) {
	characters := []models.Character{}
	if !storage.IsDir(charactersDir) {
		return characters, nil
	}

	entries, err := os.ReadDir(charactersDir)
	if err != nil {
		return characters, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		character := models.Character{ID: id, Name: id}

		avatarDir := filepath.Join(charactersDir, id, AvatarDir)
		if storage.IsDir(avatarDir) {
			images := listImages(avatarDir)
			character.Emotions = make([]string, 0, len(images))
			for _, img := range images {
				emotion := strings.TrimSuffix(img, filepath.Ext(img))
				character.Emotions = append(character.Emotions, emotion)

				// 同一资源登记多个键，便于按文件名、角色ID或嵌套路径查找
				charURL := base + "/character/" + url.PathEscape(id)
				assets[CharactersDir+"/"+id] = charURL
				assets[id] = charURL
				assets[CharactersDir+"/"+id+"/"+AvatarDir+"/"+emotion] = charURL + "/" + url.PathEscape(emotion)
			}
		}

		characters = append(characters, character)
	}
	return characters, nil
}

// ResolveAsset 查找资源文件：先按相对路径，再按文件名后缀搜索
func (s *PreviewService) ResolveAsset(storyID, assetPath string) (string, error) {
	dir, err := s.StoryDir(storyID)
	if err != nil {
		return "", err
	}

	assetPath = strings.TrimPrefix(strings.ReplaceAll(assetPath, "\\", "/"), "/")
	notFound := apperrors.NewResourceNotFoundError("asset", fmt.Sprintf("Asset not found: %s", assetPath))
	if assetPath == "" {
		utils.AssetLookupsTotal.WithLabelValues("asset", "miss").Inc()
		return "", notFound
	}

	assetsDir := filepath.Join(dir, AssetsDir)
	full, err := storage.ResolveWithin(assetsDir, assetPath)
	if err != nil {
		utils.AssetLookupsTotal.WithLabelValues("asset", "miss").Inc()
		return "", notFound
	}
	if storage.IsRegularFile(full) {
		utils.AssetLookupsTotal.WithLabelValues("asset", "direct").Inc()
		return full, nil
	}

	if storage.IsDir(assetsDir) {
		var found string
		_ = filepath.WalkDir(assetsDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			name := d.Name()
			if name == assetPath || strings.HasSuffix(name, assetPath) {
				found = p
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			utils.AssetLookupsTotal.WithLabelValues("asset", "fallback").Inc()
			return found, nil
		}
	}

	utils.AssetLookupsTotal.WithLabelValues("asset", "miss").Inc()
	return "", notFound
}

// ResolveCharacterEmotionImage 查找角色指定情绪的头像
//
// 顺序：<emotion>.png、<emotion>.jpg、正常.png、avatar 目录中的第一张图片。
func (s *PreviewService) ResolveCharacterEmotionImage(storyID, characterID, emotion string) (string, error) {
	dir, err := s.StoryDir(storyID)
	if err != nil {
		return "", err
	}
	if emotion == "" {
		emotion = DefaultEmotion
	}

	notFound := apperrors.NewResourceNotFoundError("character",
		fmt.Sprintf("Character image not found: %s/%s", characterID, emotion))
	if !isPlainName(characterID) || !isPlainName(emotion) {
		utils.AssetLookupsTotal.WithLabelValues("avatar", "miss").Inc()
		return "", notFound
	}

	avatarDir := filepath.Join(dir, CharactersDir, characterID, AvatarDir)
	for _, ext := range []string{".png", ".jpg"} {
		candidate := filepath.Join(avatarDir, emotion+ext)
		if storage.IsRegularFile(candidate) {
			utils.AssetLookupsTotal.WithLabelValues("avatar", "direct").Inc()
			return candidate, nil
		}
	}

	if storage.IsDir(avatarDir) {
		normal := filepath.Join(avatarDir, DefaultEmotion+".png")
		if storage.IsRegularFile(normal) {
			utils.AssetLookupsTotal.WithLabelValues("avatar", "fallback").Inc()
			return normal, nil
		}
		if images := listImages(avatarDir); len(images) > 0 {
			utils.AssetLookupsTotal.WithLabelValues("avatar", "fallback").Inc()
			return filepath.Join(avatarDir, images[0]), nil
		}
	}

	utils.AssetLookupsTotal.WithLabelValues("avatar", "miss").Inc()
	return "", notFound
}

// ResolveCharacterImage 查找角色的默认头像，最后尝试几个旧的存放位置
func (s *PreviewService) ResolveCharacterImage(storyID, characterID string) (string, error) {
	dir, err := s.StoryDir(storyID)
	if err != nil {
		return "", err
	}

	notFound := apperrors.NewResourceNotFoundError("character",
		fmt.Sprintf("Character image not found: %s", characterID))
	if !isPlainName(characterID) {
		utils.AssetLookupsTotal.WithLabelValues("avatar", "miss").Inc()
		return "", notFound
	}

	avatarDir := filepath.Join(dir, CharactersDir, characterID, AvatarDir)
	if storage.IsDir(avatarDir) {
		for _, name := range defaultEmotionNames {
			for _, ext := range defaultEmotionExts {
				candidate := filepath.Join(avatarDir, name+ext)
				if storage.IsRegularFile(candidate) {
					utils.AssetLookupsTotal.WithLabelValues("avatar", "direct").Inc()
					return candidate, nil
				}
			}
		}
		if images := listImages(avatarDir); len(images) > 0 {
			utils.AssetLookupsTotal.WithLabelValues("avatar", "fallback").Inc()
			return filepath.Join(avatarDir, images[0]), nil
		}
	}

	legacy := []string{
		filepath.Join(dir, AssetsDir, CharactersDir, characterID),
		filepath.Join(dir, AssetsDir, CharactersDir, characterID+".png"),
		filepath.Join(dir, CharactersDir, characterID, characterID+".png"),
	}
	for _, candidate := range legacy {
		if storage.IsRegularFile(candidate) {
			utils.AssetLookupsTotal.WithLabelValues("avatar", "fallback").Inc()
			return candidate, nil
		}
	}

	utils.AssetLookupsTotal.WithLabelValues("avatar", "miss").Inc()
	return "", notFound
}

// listImages 返回目录中的图片文件名（按名称排序）
func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isImageFile(entry.Name()) {
			images = append(images, entry.Name())
		}
	}
	sort.Strings(images)
	return images
}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range imageExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// isPlainName 单个路径片段：非空、不含分隔符、不是 . 或 ..
func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// escapePath 逐段转义斜杠分隔的路径
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return path.Join(segments...)
}
