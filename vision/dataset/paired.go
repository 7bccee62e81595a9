// Package dataset provides directory-backed datasets of paired
// low-resolution/high-resolution images for super-resolution training.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-superres/vision/preprocessing"
)

// ErrOutOfRange indicates an index outside [0, Len())
var ErrOutOfRange = errors.New("index out of range")

// LoadError reports a failure to open or decode one of the images in a
// pair. Both paths are carried so the caller can tell which sample broke.
type LoadError struct {
	LowResPath  string
	HighResPath string
	Err         error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading image %s or %s: %v", e.LowResPath, e.HighResPath, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DefaultExtensions are the recognized image file extensions,
// matched case-sensitively
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// PairedDataset is an indexable collection of low-resolution/high-resolution
// image pairs stored as identically named files in two directories. The
// filename list is captured once at construction; the high-resolution
// counterpart of each file is assumed present and is only checked when a
// sample is actually loaded.
type PairedDataset struct {
	lowResDir  string
	highResDir string
	names      []string
	cropper    *preprocessing.PairCropper
	hrCropSize int
	scale      int
	log        zerolog.Logger
}

type options struct {
	rng        *rand.Rand
	log        zerolog.Logger
	logSet     bool
	extensions []string
}

// Option configures a PairedDataset
type Option func(*options)

// WithRand sets the random source used for crop placement
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogger sets the logger used for diagnostics
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
		o.logSet = true
	}
}

// WithExtensions overrides the recognized image file extensions
func WithExtensions(extensions ...string) Option {
	return func(o *options) { o.extensions = extensions }
}

// NewPairedDataset creates a dataset from two directories of identically
// named images. Entries are enumerated from lowResDir only; an empty
// enumeration is logged as a warning but is not an error.
func NewPairedDataset(lowResDir, highResDir string, hrCropSize, scale int, opts ...Option) (*PairedDataset, error) {
	o := &options{extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(o)
	}
	if !o.logSet {
		o.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	cropper, err := preprocessing.NewPairCropper(hrCropSize, scale, o.rng)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(lowResDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", lowResDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if hasRecognizedExtension(entry.Name(), o.extensions) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		o.log.Warn().Str("dir", lowResDir).
			Msg("no image files found; check the directory and file formats")
	} else {
		o.log.Info().Str("dir", lowResDir).Int("count", len(names)).
			Msg("enumerated image pairs")
	}

	return &PairedDataset{
		lowResDir:  lowResDir,
		highResDir: highResDir,
		names:      names,
		cropper:    cropper,
		hrCropSize: hrCropSize,
		scale:      scale,
		log:        o.log,
	}, nil
}

func hasRecognizedExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Len returns the number of image pairs in the dataset
func (d *PairedDataset) Len() int {
	return len(d.names)
}

// Names returns the enumerated filenames
func (d *PairedDataset) Names() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)
	return names
}

// PairPaths returns the low-res and high-res paths for the given index
func (d *PairedDataset) PairPaths(index int) (lowRes, highRes string, err error) {
	if index < 0 || index >= len(d.names) {
		return "", "", fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, index, len(d.names))
	}
	return filepath.Join(d.lowResDir, d.names[index]),
		filepath.Join(d.highResDir, d.names[index]), nil
}

// GetItem loads the image pair at the given index, converts both images to
// RGB and returns a random spatially corresponding crop pair as normalized
// CHW tensors. Load failures are logged with both paths and returned as a
// *LoadError for the caller to decide whether to skip or abort.
func (d *PairedDataset) GetItem(index int) (lowRes, highRes *preprocessing.Tensor, err error) {
	lrPath, hrPath, err := d.PairPaths(index)
	if err != nil {
		return nil, nil, err
	}

	lrImg, err := preprocessing.LoadImage(lrPath)
	if err != nil {
		return nil, nil, d.loadFailed(lrPath, hrPath, err)
	}

	hrImg, err := preprocessing.LoadImage(hrPath)
	if err != nil {
		return nil, nil, d.loadFailed(lrPath, hrPath, err)
	}

	return d.cropper.Crop(lrImg, hrImg)
}

func (d *PairedDataset) loadFailed(lrPath, hrPath string, err error) error {
	d.log.Error().Str("lowres", lrPath).Str("highres", hrPath).Err(err).
		Msg("failed to load image pair")
	return &LoadError{LowResPath: lrPath, HighResPath: hrPath, Err: err}
}

// Verify checks that every enumerated low-res file has a high-res
// counterpart. Optional: GetItem fails lazily either way.
func (d *PairedDataset) Verify() error {
	for _, name := range d.names {
		hrPath := filepath.Join(d.highResDir, name)
		if _, err := os.Stat(hrPath); err != nil {
			return &LoadError{
				LowResPath:  filepath.Join(d.lowResDir, name),
				HighResPath: hrPath,
				Err:         err,
			}
		}
	}
	return nil
}

// Split splits the dataset into train and validation sets
func (d *PairedDataset) Split(trainRatio float64, shuffle bool) (*PairedDataset, *PairedDataset) {
	n := len(d.names)
	trainSize := int(float64(n) * trainRatio)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	if shuffle {
		rand.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return d.Subset(indices[:trainSize]), d.Subset(indices[trainSize:])
}

// Subset creates a dataset containing only the samples at the given
// indices, sharing the crop configuration
func (d *PairedDataset) Subset(indices []int) *PairedDataset {
	subset := &PairedDataset{
		lowResDir:  d.lowResDir,
		highResDir: d.highResDir,
		names:      make([]string, 0, len(indices)),
		cropper:    d.cropper,
		hrCropSize: d.hrCropSize,
		scale:      d.scale,
		log:        d.log,
	}

	for _, idx := range indices {
		if idx >= 0 && idx < len(d.names) {
			subset.names = append(subset.names, d.names[idx])
		}
	}

	return subset
}

// String returns a string representation of the dataset
func (d *PairedDataset) String() string {
	return fmt.Sprintf("PairedDataset: %d pairs (%s / %s), %dx crop %d",
		len(d.names), d.lowResDir, d.highResDir, d.scale, d.hrCropSize)
}
