// internal/storage/file_storage.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrOutsideRoot 路径试图跳出根目录
var ErrOutsideRoot = fmt.Errorf("路径超出根目录")

// FileStorage 提供以 BaseDir 为根的文件访问
//
// 所有相对路径都经过 Resolve 校验，不能通过 ".." 或绝对路径访问根目录之外的文件。
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("获取存储目录绝对路径失败: %w", err)
	}

	return &FileStorage{BaseDir: abs}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// Resolve 把斜杠分隔的相对路径片段拼接到根目录下
func (fs *FileStorage) Resolve(parts ...string) (string, error) {
	return ResolveWithin(fs.BaseDir, parts...)
}

// ResolveWithin 在 root 下拼接路径，结果不得离开 root
func ResolveWithin(root string, parts ...string) (string, error) {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, root)
	for _, p := range parts {
		p = strings.ReplaceAll(p, "\\", "/")
		if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
			return "", ErrOutsideRoot
		}
		elems = append(elems, filepath.FromSlash(p))
	}

	full := filepath.Join(elems...)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// DirExists 检查目录是否存在
func (fs *FileStorage) DirExists(parts ...string) bool {
	fullPath, err := fs.Resolve(parts...)
	if err != nil {
		return false
	}
	return IsDir(fullPath)
}

// FileExists 检查普通文件是否存在
func (fs *FileStorage) FileExists(parts ...string) bool {
	fullPath, err := fs.Resolve(parts...)
	if err != nil {
		return false
	}
	return IsRegularFile(fullPath)
}

// IsDir 路径存在且是目录
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsRegularFile 路径存在且是普通文件
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListDirs 列出目录下的所有子目录（按名称排序）
func (fs *FileStorage) ListDirs(parts ...string) ([]string, error) {
	fullPath, err := fs.Resolve(parts...)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)

	return dirs, nil
}

// SaveFile 原子地保存文件
func (fs *FileStorage) SaveFile(relPath string, content []byte) error {
	fullPath, err := fs.Resolve(relPath)
	if err != nil {
		return err
	}

	// 获取文件锁
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fmt.Printf("Warning: failed to clean up temporary file %s after rename failure: %v\n", tempPath, removeErr)
		}
		return fmt.Errorf("保存文件失败: %w", err)
	}

	return nil
}

// SaveYAMLFile 保存YAML文件
func (fs *FileStorage) SaveYAMLFile(relPath string, data interface{}) error {
	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化YAML失败: %w", err)
	}
	return fs.SaveFile(relPath, content)
}
