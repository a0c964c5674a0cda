// internal/services/lock_manager.go
package services

import "sync"

// LockManager 按故事ID分配读写锁
//
// 读取预览数据持有读锁，生成故事文件持有写锁，避免读到写了一半的目录。
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*lockInfo
}

// lockInfo 包装锁和引用计数
type lockInfo struct {
	mutex          sync.RWMutex
	referenceCount int
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*lockInfo)}
}

// acquire 取得锁条目并增加引用计数
func (lm *LockManager) acquire(storyID string) *lockInfo {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	info, exists := lm.locks[storyID]
	if !exists {
		info = &lockInfo{}
		lm.locks[storyID] = info
	}
	info.referenceCount++
	return info
}

// release 减少引用计数，没有使用者时删除条目
func (lm *LockManager) release(storyID string, info *lockInfo) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	info.referenceCount--
	if info.referenceCount == 0 && lm.locks[storyID] == info {
		delete(lm.locks, storyID)
	}
}

// ExecuteWithStoryLock 在故事写锁保护下执行操作
func (lm *LockManager) ExecuteWithStoryLock(storyID string, fn func() error) error {
	info := lm.acquire(storyID)
	defer lm.release(storyID, info)

	info.mutex.Lock()
	defer info.mutex.Unlock()
	return fn()
}

// ExecuteWithStoryReadLock 在故事读锁保护下执行操作
func (lm *LockManager) ExecuteWithStoryReadLock(storyID string, fn func() error) error {
	info := lm.acquire(storyID)
	defer lm.release(storyID, info)

	info.mutex.RLock()
	defer info.mutex.RUnlock()
	return fn()
}

// Len 当前持有的锁条目数量
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
