package preprocessing

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"
)

var (
	// ErrInvalidCropSpec indicates a non-positive or non-divisible crop
	// size / scale combination
	ErrInvalidCropSpec = errors.New("invalid crop specification")

	// ErrInsufficientImageSize indicates an image smaller than the
	// required crop size
	ErrInsufficientImageSize = errors.New("image smaller than required crop size")
)

// PairCropper extracts spatially corresponding random crops from a
// low-resolution/high-resolution image pair. The crop location is chosen
// in low-resolution coordinates and scaled up for the high-resolution
// image, so both crops cover the same scene content.
type PairCropper struct {
	hrCropSize int
	lrCropSize int
	scale      int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPairCropper creates a cropper for the given high-resolution crop size
// and scale factor. The crop size must be divisible by the scale. A nil rng
// falls back to a time-seeded source; pass a seeded *rand.Rand for
// reproducible crops (one per worker for parallel use).
func NewPairCropper(hrCropSize, scale int, rng *rand.Rand) (*PairCropper, error) {
	if hrCropSize <= 0 || scale <= 0 {
		return nil, fmt.Errorf("%w: crop size %d and scale %d must be positive",
			ErrInvalidCropSpec, hrCropSize, scale)
	}
	if hrCropSize%scale != 0 {
		return nil, fmt.Errorf("%w: crop size %d is not divisible by scale %d",
			ErrInvalidCropSpec, hrCropSize, scale)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &PairCropper{
		hrCropSize: hrCropSize,
		lrCropSize: hrCropSize / scale,
		scale:      scale,
		rng:        rng,
	}, nil
}

// HRCropSize returns the high-resolution crop size
func (pc *PairCropper) HRCropSize() int { return pc.hrCropSize }

// LRCropSize returns the derived low-resolution crop size
func (pc *PairCropper) LRCropSize() int { return pc.lrCropSize }

// Scale returns the upscaling factor
func (pc *PairCropper) Scale() int { return pc.scale }

// Crop picks a random crop location in the low-resolution image, derives
// the corresponding location in the high-resolution image, and returns both
// regions as normalized CHW tensors. The crop location is the only
// augmentation applied. Returns ErrInsufficientImageSize when either image
// cannot hold its crop.
func (pc *PairCropper) Crop(lowRes, highRes image.Image) (*Tensor, *Tensor, error) {
	lrWidth := lowRes.Bounds().Dx()
	lrHeight := lowRes.Bounds().Dy()
	if lrWidth < pc.lrCropSize || lrHeight < pc.lrCropSize {
		return nil, nil, fmt.Errorf("%w: low-res image is %dx%d, need at least %dx%d",
			ErrInsufficientImageSize, lrWidth, lrHeight, pc.lrCropSize, pc.lrCropSize)
	}

	// Inclusive upper bound: a crop may start flush against the far edge
	pc.mu.Lock()
	x := pc.rng.Intn(lrWidth - pc.lrCropSize + 1)
	y := pc.rng.Intn(lrHeight - pc.lrCropSize + 1)
	pc.mu.Unlock()

	return pc.cropAt(lowRes, highRes, x, y)
}

// cropAt extracts the pair of crops anchored at the given low-resolution
// coordinates
func (pc *PairCropper) cropAt(lowRes, highRes image.Image, x, y int) (*Tensor, *Tensor, error) {
	hrX := x * pc.scale
	hrY := y * pc.scale

	hrWidth := highRes.Bounds().Dx()
	hrHeight := highRes.Bounds().Dy()
	if hrX+pc.hrCropSize > hrWidth || hrY+pc.hrCropSize > hrHeight {
		return nil, nil, fmt.Errorf("%w: high-res image is %dx%d, need %dx%d at (%d,%d)",
			ErrInsufficientImageSize, hrWidth, hrHeight, pc.hrCropSize, pc.hrCropSize, hrX, hrY)
	}

	lrMin := lowRes.Bounds().Min
	lrTensor := ToTensor(lowRes, image.Rect(
		lrMin.X+x, lrMin.Y+y,
		lrMin.X+x+pc.lrCropSize, lrMin.Y+y+pc.lrCropSize))

	hrMin := highRes.Bounds().Min
	hrTensor := ToTensor(highRes, image.Rect(
		hrMin.X+hrX, hrMin.Y+hrY,
		hrMin.X+hrX+pc.hrCropSize, hrMin.Y+hrY+pc.hrCropSize))

	return lrTensor, hrTensor, nil
}
