package preprocessing

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// makeGradientImage creates an RGBA image where every pixel value is
// derived from its coordinates, so crops can be checked positionally
func makeGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// makeUpscaledImage builds the nearest-neighbor upscale of an image, so a
// high-res pixel at (x*scale, y*scale) equals the low-res pixel at (x, y)
func makeUpscaledImage(lowRes *image.RGBA, scale int) *image.RGBA {
	bounds := lowRes.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	for y := 0; y < bounds.Dy()*scale; y++ {
		for x := 0; x < bounds.Dx()*scale; x++ {
			img.SetRGBA(x, y, lowRes.RGBAAt(x/scale, y/scale))
		}
	}
	return img
}

func TestNewPairCropper(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cropper, err := NewPairCropper(256, 4, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cropper.LRCropSize() != 64 {
			t.Errorf("Expected LR crop size 64, got %d", cropper.LRCropSize())
		}
		if cropper.HRCropSize() != 256 {
			t.Errorf("Expected HR crop size 256, got %d", cropper.HRCropSize())
		}
		if cropper.Scale() != 4 {
			t.Errorf("Expected scale 4, got %d", cropper.Scale())
		}
	})

	t.Run("NonPositive", func(t *testing.T) {
		if _, err := NewPairCropper(0, 4, nil); !errors.Is(err, ErrInvalidCropSpec) {
			t.Errorf("Expected ErrInvalidCropSpec for zero crop size, got %v", err)
		}
		if _, err := NewPairCropper(256, -1, nil); !errors.Is(err, ErrInvalidCropSpec) {
			t.Errorf("Expected ErrInvalidCropSpec for negative scale, got %v", err)
		}
	})

	t.Run("NotDivisible", func(t *testing.T) {
		if _, err := NewPairCropper(250, 4, nil); !errors.Is(err, ErrInvalidCropSpec) {
			t.Errorf("Expected ErrInvalidCropSpec for non-divisible crop size, got %v", err)
		}
	})
}

func TestCropShapes(t *testing.T) {
	lowRes := makeGradientImage(64, 64)
	highRes := makeUpscaledImage(lowRes, 4)

	cropper, err := NewPairCropper(128, 4, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lrTensor, hrTensor, err := cropper.Crop(lowRes, highRes)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if lrTensor.Channels != 3 || lrTensor.Height != 32 || lrTensor.Width != 32 {
		t.Errorf("Expected LR tensor [3,32,32], got %v", lrTensor.Shape())
	}
	if hrTensor.Channels != 3 || hrTensor.Height != 128 || hrTensor.Width != 128 {
		t.Errorf("Expected HR tensor [3,128,128], got %v", hrTensor.Shape())
	}

	for i, v := range lrTensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("LR value out of [0,1] at %d: %f", i, v)
		}
	}
	for i, v := range hrTensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("HR value out of [0,1] at %d: %f", i, v)
		}
	}
}

// TestCropCorrespondence verifies that both crops cover the same scene
// content: with a nearest-neighbor upscaled high-res image, the high-res
// pixel at (x*scale, y*scale) inside the crop must equal the low-res pixel
// at (x, y)
func TestCropCorrespondence(t *testing.T) {
	const scale = 4
	lowRes := makeGradientImage(48, 40)
	highRes := makeUpscaledImage(lowRes, scale)

	cropper, err := NewPairCropper(64, scale, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for trial := 0; trial < 20; trial++ {
		lrTensor, hrTensor, err := cropper.Crop(lowRes, highRes)
		if err != nil {
			t.Fatalf("Crop failed: %v", err)
		}

		for c := 0; c < 3; c++ {
			for y := 0; y < lrTensor.Height; y++ {
				for x := 0; x < lrTensor.Width; x++ {
					lrVal := lrTensor.At(c, y, x)
					hrVal := hrTensor.At(c, y*scale, x*scale)
					if lrVal != hrVal {
						t.Fatalf("Trial %d: mismatch at c=%d y=%d x=%d: lr=%f hr=%f",
							trial, c, y, x, lrVal, hrVal)
					}
				}
			}
		}
	}
}

func TestCropAtCoordinateScaling(t *testing.T) {
	const scale = 2
	lowRes := makeGradientImage(32, 32)
	highRes := makeUpscaledImage(lowRes, scale)

	cropper, err := NewPairCropper(16, scale, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Anchor at (5, 9) in low-res space; the high-res crop must start at
	// (10, 18)
	lrTensor, hrTensor, err := cropper.cropAt(lowRes, highRes, 5, 9)
	if err != nil {
		t.Fatalf("cropAt failed: %v", err)
	}

	wantLR := ToTensor(lowRes, image.Rect(5, 9, 5+8, 9+8))
	wantHR := ToTensor(highRes, image.Rect(10, 18, 10+16, 18+16))

	for i := range wantLR.Data {
		if lrTensor.Data[i] != wantLR.Data[i] {
			t.Fatalf("LR data mismatch at %d", i)
		}
	}
	for i := range wantHR.Data {
		if hrTensor.Data[i] != wantHR.Data[i] {
			t.Fatalf("HR data mismatch at %d", i)
		}
	}
}

func TestCropInsufficientSize(t *testing.T) {
	t.Run("LowResTooSmall", func(t *testing.T) {
		lowRes := makeGradientImage(16, 16)
		highRes := makeGradientImage(256, 256)

		cropper, err := NewPairCropper(128, 4, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		_, _, err = cropper.Crop(lowRes, highRes)
		if !errors.Is(err, ErrInsufficientImageSize) {
			t.Errorf("Expected ErrInsufficientImageSize, got %v", err)
		}
	})

	t.Run("LowResTooSmallOneAxis", func(t *testing.T) {
		lowRes := makeGradientImage(64, 16)
		highRes := makeGradientImage(256, 256)

		cropper, err := NewPairCropper(128, 4, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		_, _, err = cropper.Crop(lowRes, highRes)
		if !errors.Is(err, ErrInsufficientImageSize) {
			t.Errorf("Expected ErrInsufficientImageSize, got %v", err)
		}
	})

	t.Run("HighResTooSmall", func(t *testing.T) {
		// Exactly one possible crop position, so the undersized high-res
		// image fails deterministically
		lowRes := makeGradientImage(64, 64)
		highRes := makeGradientImage(128, 128)

		cropper, err := NewPairCropper(256, 4, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		_, _, err = cropper.Crop(lowRes, highRes)
		if !errors.Is(err, ErrInsufficientImageSize) {
			t.Errorf("Expected ErrInsufficientImageSize, got %v", err)
		}
	})
}

// TestCropExactFit covers the boundary where the image is exactly the crop
// size: the only valid position is (0, 0)
func TestCropExactFit(t *testing.T) {
	const scale = 4
	lowRes := makeGradientImage(64, 64)
	highRes := makeUpscaledImage(lowRes, scale)

	cropper, err := NewPairCropper(256, scale, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lrTensor, hrTensor, err := cropper.Crop(lowRes, highRes)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if lrTensor.Height != 64 || lrTensor.Width != 64 {
		t.Errorf("Expected LR tensor [3,64,64], got %v", lrTensor.Shape())
	}
	if hrTensor.Height != 256 || hrTensor.Width != 256 {
		t.Errorf("Expected HR tensor [3,256,256], got %v", hrTensor.Shape())
	}

	// With only one valid position the crop must equal the full image
	full := ToTensor(lowRes, lowRes.Bounds())
	for i := range full.Data {
		if lrTensor.Data[i] != full.Data[i] {
			t.Fatalf("Expected full-image crop, mismatch at %d", i)
		}
	}
}

func TestCropSeededDeterminism(t *testing.T) {
	lowRes := makeGradientImage(64, 64)
	highRes := makeUpscaledImage(lowRes, 2)

	first, err := NewPairCropper(32, 2, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := NewPairCropper(32, 2, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for trial := 0; trial < 5; trial++ {
		lr1, hr1, err := first.Crop(lowRes, highRes)
		if err != nil {
			t.Fatalf("Crop failed: %v", err)
		}
		lr2, hr2, err := second.Crop(lowRes, highRes)
		if err != nil {
			t.Fatalf("Crop failed: %v", err)
		}

		for i := range lr1.Data {
			if lr1.Data[i] != lr2.Data[i] {
				t.Fatalf("Trial %d: LR crops differ at %d", trial, i)
			}
		}
		for i := range hr1.Data {
			if hr1.Data[i] != hr2.Data[i] {
				t.Fatalf("Trial %d: HR crops differ at %d", trial, i)
			}
		}
	}
}
