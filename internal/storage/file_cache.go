// internal/storage/file_cache.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/Corphon/StoryPreview/internal/utils"
)

// DocumentCache 缓存解析后的 YAML 文档
//
// 条目以绝对路径为键，并记录文件的修改时间和大小；文件在磁盘上被修改后
// 下一次读取会重新解析，因此缓存永远不会返回过期内容。
type DocumentCache struct {
	cache *cache.Cache
}

// documentEntry 缓存条目，解析错误也会被缓存
type documentEntry struct {
	modTime time.Time
	size    int64
	value   interface{}
	err     error
}

// NewDocumentCache 创建文档缓存
func NewDocumentCache(expiration time.Duration) *DocumentCache {
	if expiration <= 0 {
		expiration = 5 * time.Minute // 默认5分钟过期
	}
	return &DocumentCache{
		cache: cache.New(expiration, 2*expiration),
	}
}

// load 读取文件；命中且文件未修改时返回缓存的值
func (s *DocumentCache) load(path string, decode func([]byte) (interface{}, error)) (interface{}, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		s.cache.Delete(absPath)
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s 是目录", filepath.Base(absPath))
	}

	if cached, ok := s.cache.Get(absPath); ok {
		entry := cached.(*documentEntry)
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			utils.DocumentCacheTotal.WithLabelValues("hit").Inc()
			return entry.value, entry.err
		}
	}
	utils.DocumentCacheTotal.WithLabelValues("miss").Inc()

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	value, decodeErr := decode(data)
	s.cache.SetDefault(absPath, &documentEntry{
		modTime: info.ModTime(),
		size:    info.Size(),
		value:   value,
		err:     decodeErr,
	})
	return value, decodeErr
}

// Invalidate 从缓存中删除条目
func (s *DocumentCache) Invalidate(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	s.cache.Delete(absPath)
}

// Flush 清空缓存
func (s *DocumentCache) Flush() {
	s.cache.Flush()
}

// Len 返回缓存条目数
func (s *DocumentCache) Len() int {
	return s.cache.ItemCount()
}

// LoadYAML 读取并解析 YAML 文件到 T。返回的值在多个请求间共享，调用方不得修改。
func LoadYAML[T any](s *DocumentCache, path string) (*T, error) {
	decode := func(data []byte) (interface{}, error) {
		target := new(T)
		if err := yaml.Unmarshal(data, target); err != nil {
			return nil, err
		}
		return target, nil
	}

	if s == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		value, err := decode(data)
		if err != nil {
			return nil, err
		}
		return value.(*T), nil
	}

	value, err := s.load(path, decode)
	if err != nil {
		return nil, err
	}
	return value.(*T), nil
}
