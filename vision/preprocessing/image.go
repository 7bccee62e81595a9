// Package preprocessing converts raster images into normalized CHW tensors
// and implements the synchronized random crop used to build paired
// low-resolution/high-resolution training samples.
package preprocessing

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
)

// DecodeImage decodes a PNG or JPEG image from the reader
func DecodeImage(reader io.Reader) (image.Image, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadImage opens and decodes the image at the given path
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// ToTensor converts the given region of an image to a 3-channel float32
// tensor in CHW format, normalized to [0, 1]. Any source color model is
// converted to RGB; alpha is discarded.
func ToTensor(img image.Image, region image.Rectangle) *Tensor {
	width := region.Dx()
	height := region.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(region.Min.X+x, region.Min.Y+y).RGBA()

			idx := y*width + x
			data[0*plane+idx] = float32(r) / 65535.0 // R channel
			data[1*plane+idx] = float32(g) / 65535.0 // G channel
			data[2*plane+idx] = float32(b) / 65535.0 // B channel
		}
	}

	return &Tensor{
		Data:     data,
		Channels: 3,
		Height:   height,
		Width:    width,
	}
}

// ToImage converts a 3-channel CHW tensor back into an RGBA image.
// Values are clamped to [0, 1] before quantization.
func ToImage(t *Tensor) (*image.RGBA, error) {
	if t.Channels != 3 {
		return nil, fmt.Errorf("expected 3-channel tensor, got %d channels", t.Channels)
	}

	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	plane := t.Width * t.Height

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			idx := y*t.Width + x
			img.SetRGBA(x, y, color.RGBA{
				R: quantize(t.Data[0*plane+idx]),
				G: quantize(t.Data[1*plane+idx]),
				B: quantize(t.Data[2*plane+idx]),
				A: 255,
			})
		}
	}

	return img, nil
}

func quantize(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}
