package dataloader

import (
	"fmt"
	"image"
	"testing"
)

func testImage(size int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, size, size))
}

func TestCacheManagerBasic(t *testing.T) {
	cm := NewCacheManager(10)

	if _, exists := cm.Get("missing"); exists {
		t.Error("Expected miss for missing key")
	}

	img := testImage(4)
	cm.Put("a", img)

	got, exists := cm.Get("a")
	if !exists {
		t.Fatal("Expected hit for cached key")
	}
	if got != img {
		t.Error("Expected the cached image back")
	}

	stats := cm.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 50.0 {
		t.Errorf("Expected hit rate 50%%, got %.1f", stats.HitRate)
	}
}

func TestCacheManagerEviction(t *testing.T) {
	cm := NewCacheManager(2)

	cm.Put("a", testImage(2))
	cm.Put("b", testImage(2))

	// Touch "a" so "b" becomes least recently used
	if _, exists := cm.Get("a"); !exists {
		t.Fatal("Expected hit for a")
	}

	cm.Put("c", testImage(2))

	if _, exists := cm.Get("b"); exists {
		t.Error("Expected b to be evicted")
	}
	if _, exists := cm.Get("a"); !exists {
		t.Error("Expected a to survive eviction")
	}
	if _, exists := cm.Get("c"); !exists {
		t.Error("Expected c to be cached")
	}

	if size := cm.Stats().Size; size != 2 {
		t.Errorf("Expected cache size 2, got %d", size)
	}
}

func TestCacheManagerClear(t *testing.T) {
	cm := NewCacheManager(10)
	cm.Put("a", testImage(2))
	cm.Get("a")

	cm.Clear()

	if size := cm.Stats().Size; size != 0 {
		t.Errorf("Expected empty cache after clear, got %d", size)
	}
	// Statistics stay cumulative across Clear
	if cm.Stats().Hits != 1 {
		t.Errorf("Expected hits to survive Clear, got %d", cm.Stats().Hits)
	}

	cm.ResetStats()
	if stats := cm.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Expected stats reset, got %d/%d", stats.Hits, stats.Misses)
	}
}

func TestCacheManagerDuplicatePut(t *testing.T) {
	cm := NewCacheManager(10)
	cm.Put("a", testImage(2))
	cm.Put("a", testImage(2))

	if size := cm.Stats().Size; size != 1 {
		t.Errorf("Expected size 1 after duplicate put, got %d", size)
	}
}

func TestCacheManagerConcurrent(t *testing.T) {
	cm := NewCacheManager(100)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("img_%d", i%10)
				if _, exists := cm.Get(key); !exists {
					cm.Put(key, testImage(2))
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	if size := cm.Stats().Size; size != 10 {
		t.Errorf("Expected 10 cached images, got %d", size)
	}
}
