package dataloader

import (
	"container/list"
	"fmt"
	"image"
	"sync"
)

// CacheManager manages a shared LRU cache of decoded images keyed by path.
// Decoded images are cached rather than crop tensors because the crop
// location is re-randomized on every fetch.
type CacheManager struct {
	mu          sync.RWMutex
	cache       map[string]image.Image
	lru         *list.List
	lruMap      map[string]*list.Element
	maxSize     int
	currentSize int

	// Statistics
	hits   int64
	misses int64
}

// NewCacheManager creates a cache manager holding at most maxSize images
func NewCacheManager(maxSize int) *CacheManager {
	return &CacheManager{
		cache:   make(map[string]image.Image),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Get retrieves a decoded image from the cache
func (cm *CacheManager) Get(key string) (image.Image, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if img, exists := cm.cache[key]; exists {
		if elem, ok := cm.lruMap[key]; ok {
			cm.lru.MoveToFront(elem)
		}
		cm.hits++
		return img, true
	}

	cm.misses++
	return nil, false
}

// Put adds a decoded image to the cache
func (cm *CacheManager) Put(key string, img image.Image) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.cache[key]; exists {
		if elem, ok := cm.lruMap[key]; ok {
			cm.lru.MoveToFront(elem)
		}
		return
	}

	elem := cm.lru.PushFront(key)
	cm.lruMap[key] = elem
	cm.cache[key] = img
	cm.currentSize++

	for cm.currentSize > cm.maxSize && cm.lru.Len() > 0 {
		oldest := cm.lru.Back()
		if oldest != nil {
			cm.removeElement(oldest)
		}
	}
}

func (cm *CacheManager) removeElement(elem *list.Element) {
	key := elem.Value.(string)
	cm.lru.Remove(elem)
	delete(cm.lruMap, key)
	delete(cm.cache, key)
	cm.currentSize--
}

// Stats returns cache statistics
func (cm *CacheManager) Stats() CacheStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return CacheStats{
		Size:    cm.currentSize,
		MaxSize: cm.maxSize,
		Hits:    cm.hits,
		Misses:  cm.misses,
		HitRate: cm.calculateHitRate(),
	}
}

func (cm *CacheManager) calculateHitRate() float64 {
	total := cm.hits + cm.misses
	if total == 0 {
		return 0
	}
	return float64(cm.hits) / float64(total) * 100
}

// Clear clears the cache
func (cm *CacheManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.cache = make(map[string]image.Image)
	cm.lru = list.New()
	cm.lruMap = make(map[string]*list.Element)
	cm.currentSize = 0
	// Don't reset statistics - keep them cumulative
}

// ResetStats resets the statistics
func (cm *CacheManager) ResetStats() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hits = 0
	cm.misses = 0
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d images, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
