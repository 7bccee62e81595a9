package preprocessing

import "fmt"

// Tensor holds image data in CHW format (channels, height, width) with
// values normalized to [0, 1], ready for neural network input.
type Tensor struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

// Shape returns the tensor shape as (channels, height, width)
func (t *Tensor) Shape() []int {
	return []int{t.Channels, t.Height, t.Width}
}

// NumElements returns the total number of elements in the tensor
func (t *Tensor) NumElements() int {
	return t.Channels * t.Height * t.Width
}

// At returns the value at the given channel, row and column
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[c*t.Height*t.Width+y*t.Width+x]
}

// String returns a short description of the tensor
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%d,%d,%d]", t.Channels, t.Height, t.Width)
}
