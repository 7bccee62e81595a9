// Package dataloader assembles batches of paired low-resolution and
// high-resolution crop tensors from a paired dataset, with shuffling,
// parallel fetch and a shared decoded-image cache.
package dataloader

import (
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-superres/vision/preprocessing"
)

// Dataset interface defines the contract for paired datasets
type Dataset interface {
	Len() int
	PairPaths(index int) (lowRes, highRes string, err error)
}

// PairLoader handles memory-efficient batch loading of image pairs with
// smart caching. Each worker gets its own seeded random source, so runs
// are reproducible for a fixed seed and worker count.
type PairLoader struct {
	dataset    Dataset
	batchSize  int
	shuffle    bool
	indices    []int
	position   int
	numWorkers int
	mu         sync.Mutex

	// One cropper per worker, each with an independent random source
	croppers   []*preprocessing.PairCropper
	lrCropSize int
	hrCropSize int

	// Buffer reuse for memory efficiency
	lrBuffer []float32
	hrBuffer []float32

	// Cache manager - can be shared between loaders
	cacheManager *CacheManager
	ownedCache   bool

	rng *rand.Rand
	log zerolog.Logger
}

// Config holds configuration for PairLoader
type Config struct {
	BatchSize    int
	Shuffle      bool
	Seed         int64 // Base seed for shuffling and per-worker crop placement; 0 means time-seeded
	NumWorkers   int   // Number of parallel workers for fetching
	MaxCacheSize int   // Maximum number of decoded images to cache
	HRCropSize   int
	Scale        int
	CacheManager *CacheManager   // Optional shared cache manager
	Logger       *zerolog.Logger // Optional; discards when nil
}

// Batch holds one batch of crop pairs in NCHW layout
type Batch struct {
	LowRes  []float32
	HighRes []float32
	Size    int
}

// NewPairLoader creates a new pair loader over the dataset
func NewPairLoader(dataset Dataset, config Config) (*PairLoader, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.MaxCacheSize == 0 {
		config.MaxCacheSize = 1000 // Default cache size
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	croppers := make([]*preprocessing.PairCropper, config.NumWorkers)
	for w := 0; w < config.NumWorkers; w++ {
		cropper, err := preprocessing.NewPairCropper(config.HRCropSize, config.Scale,
			rand.New(rand.NewSource(seed+int64(w))))
		if err != nil {
			return nil, err
		}
		croppers[w] = cropper
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	if config.Shuffle {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	// Use provided cache manager or create a new one
	var cacheManager *CacheManager
	var ownedCache bool
	if config.CacheManager != nil {
		cacheManager = config.CacheManager
		ownedCache = false
	} else {
		cacheManager = NewCacheManager(config.MaxCacheSize)
		ownedCache = true
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &PairLoader{
		dataset:      dataset,
		batchSize:    config.BatchSize,
		shuffle:      config.Shuffle,
		indices:      indices,
		position:     0,
		numWorkers:   config.NumWorkers,
		croppers:     croppers,
		lrCropSize:   croppers[0].LRCropSize(),
		hrCropSize:   config.HRCropSize,
		cacheManager: cacheManager,
		ownedCache:   ownedCache,
		rng:          rng,
		log:          log,
	}, nil
}

// Reset resets the loader to the beginning, reshuffling if configured
func (dl *PairLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

type fetchResult struct {
	lowRes  *preprocessing.Tensor
	highRes *preprocessing.Tensor
	err     error
}

// NextBatch loads the next batch of crop pairs. Samples that fail to load
// are skipped with a warning; the batch shrinks accordingly. Returns
// (nil, nil) when the dataset is exhausted.
func (dl *PairLoader) NextBatch() (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil // No more data
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	batchIndices := dl.indices[dl.position : dl.position+batchSize]
	dl.position += batchSize

	results := make([]fetchResult, batchSize)
	jobs := make(chan int, batchSize)
	var wg sync.WaitGroup

	for w := 0; w < dl.numWorkers; w++ {
		wg.Add(1)
		go func(cropper *preprocessing.PairCropper) {
			defer wg.Done()
			for j := range jobs {
				results[j] = dl.fetch(batchIndices[j], cropper)
			}
		}(dl.croppers[w])
	}

	for j := 0; j < batchSize; j++ {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	// Resize buffers only if needed
	lrPixels := 3 * dl.lrCropSize * dl.lrCropSize
	hrPixels := 3 * dl.hrCropSize * dl.hrCropSize
	if len(dl.lrBuffer) < batchSize*lrPixels {
		dl.lrBuffer = make([]float32, batchSize*lrPixels)
	}
	if len(dl.hrBuffer) < batchSize*hrPixels {
		dl.hrBuffer = make([]float32, batchSize*hrPixels)
	}

	actualSize := 0
	for j, res := range results {
		if res.err != nil {
			dl.log.Warn().Int("index", batchIndices[j]).Err(res.err).
				Msg("skipping sample")
			continue
		}
		copy(dl.lrBuffer[actualSize*lrPixels:(actualSize+1)*lrPixels], res.lowRes.Data)
		copy(dl.hrBuffer[actualSize*hrPixels:(actualSize+1)*hrPixels], res.highRes.Data)
		actualSize++
	}

	if actualSize == 0 {
		return nil, fmt.Errorf("all %d samples in batch failed to load", batchSize)
	}

	return &Batch{
		LowRes:  dl.lrBuffer[:actualSize*lrPixels],
		HighRes: dl.hrBuffer[:actualSize*hrPixels],
		Size:    actualSize,
	}, nil
}

// fetch loads one image pair through the cache and crops it
func (dl *PairLoader) fetch(index int, cropper *preprocessing.PairCropper) fetchResult {
	lrPath, hrPath, err := dl.dataset.PairPaths(index)
	if err != nil {
		return fetchResult{err: err}
	}

	lrImg, err := dl.loadImageWithCache(lrPath)
	if err != nil {
		return fetchResult{err: err}
	}

	hrImg, err := dl.loadImageWithCache(hrPath)
	if err != nil {
		return fetchResult{err: err}
	}

	lrTensor, hrTensor, err := cropper.Crop(lrImg, hrImg)
	if err != nil {
		return fetchResult{err: err}
	}

	return fetchResult{lowRes: lrTensor, highRes: hrTensor}
}

// loadImageWithCache loads a decoded image with caching support
func (dl *PairLoader) loadImageWithCache(path string) (image.Image, error) {
	if cached, exists := dl.cacheManager.Get(path); exists {
		return cached, nil
	}

	img, err := preprocessing.LoadImage(path)
	if err != nil {
		return nil, err
	}

	dl.cacheManager.Put(path, img)
	return img, nil
}

// LRCropSize returns the low-resolution crop size of produced batches
func (dl *PairLoader) LRCropSize() int { return dl.lrCropSize }

// HRCropSize returns the high-resolution crop size of produced batches
func (dl *PairLoader) HRCropSize() int { return dl.hrCropSize }

// Stats returns cache statistics
func (dl *PairLoader) Stats() string {
	return dl.cacheManager.Stats().String()
}

// Progress returns the current progress through the dataset
func (dl *PairLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// ClearCache clears the image cache
func (dl *PairLoader) ClearCache() {
	if dl.ownedCache {
		dl.cacheManager.Clear()
	}
	// If cache is shared, don't clear it
}

// GetCacheManager returns the cache manager for sharing between loaders
func (dl *PairLoader) GetCacheManager() *CacheManager {
	return dl.cacheManager
}
