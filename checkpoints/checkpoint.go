// Package checkpoints persists model and optimizer state between training
// epochs. Checkpoints are written as JSON or as a compact protobuf wire
// format, to files named model_epoch_<epoch>_<suffix> inside a checkpoint
// directory that is created on demand.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Format defines the serialization format
type Format int

const (
	FormatJSON Format = iota
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Ext returns the file extension for the format
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatBinary:
		return ".ckpt"
	default:
		return ""
	}
}

// ParseFormat maps a configuration string to a Format
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "binary":
		return FormatBinary, nil
	default:
		return FormatJSON, fmt.Errorf("unknown checkpoint format %q", s)
	}
}

// Checkpoint represents a complete model state including weights, optimizer
// state, and training metadata
type Checkpoint struct {
	// Model weights
	Weights []WeightTensor `json:"weights"`

	// Training state
	TrainingState TrainingState `json:"training_state"`

	// Optimizer state (if available)
	OptimizerState *OptimizerState `json:"optimizer_state,omitempty"`

	// Metadata
	Metadata Metadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight", "bias", "gamma", "beta", etc.
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	Step         int     `json:"step"`
	LearningRate float32 `json:"learning_rate"`
	BestLoss     float32 `json:"best_loss"`
	TotalSteps   int     `json:"total_steps"`
}

// OptimizerState captures optimizer-specific state (momentum, variance, etc.)
type OptimizerState struct {
	Type       string             `json:"type"` // "SGD", "Adam", etc.
	Parameters map[string]float64 `json:"parameters"`
	StateData  []OptimizerTensor  `json:"state_data"`
}

// OptimizerTensor represents optimizer state tensors (momentum, variance, etc.)
type OptimizerTensor struct {
	Name      string    `json:"name"`
	Shape     []int     `json:"shape"`
	Data      []float32 `json:"data"`
	StateType string    `json:"state_type"` // "momentum", "variance", "m", "v", etc.
}

// Metadata contains checkpoint metadata
type Metadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Saver handles saving model checkpoints in various formats
type Saver struct {
	format Format
}

// NewSaver creates a new checkpoint saver for the specified format
func NewSaver(format Format) *Saver {
	return &Saver{
		format: format,
	}
}

// Path returns the checkpoint file path for the given directory, epoch and
// suffix: <dir>/model_epoch_<epoch>_<suffix><ext>
func (s *Saver) Path(dir string, epoch int, suffix string) string {
	return filepath.Join(dir, fmt.Sprintf("model_epoch_%d_%s%s", epoch, suffix, s.format.Ext()))
}

// Save ensures the directory exists (idempotent) and writes the checkpoint
// to its epoch-derived path, returning the final path
func (s *Saver) Save(checkpoint *Checkpoint, dir string, epoch int, suffix string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}

	checkpoint.TrainingState.Epoch = epoch

	path := s.Path(dir, epoch, suffix)
	if err := s.SaveCheckpoint(checkpoint, path); err != nil {
		return "", err
	}
	return path, nil
}

// SaveCheckpoint saves a complete model checkpoint to the given path
func (s *Saver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	// Ensure metadata is set
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "go-superres"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	switch s.format {
	case FormatJSON:
		return s.saveJSON(checkpoint, path)
	case FormatBinary:
		return s.saveBinary(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", s.format.String())
	}
}

// LoadCheckpoint loads a model checkpoint from the given path
func (s *Saver) LoadCheckpoint(path string) (*Checkpoint, error) {
	switch s.format {
	case FormatJSON:
		return s.loadJSON(path)
	case FormatBinary:
		return s.loadBinary(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", s.format.String())
	}
}

// saveJSON saves checkpoint in JSON format
func (s *Saver) saveJSON(checkpoint *Checkpoint, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ") // Pretty print JSON

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	return nil
}

// loadJSON loads checkpoint from JSON format
func (s *Saver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// saveBinary saves checkpoint in protobuf wire format
func (s *Saver) saveBinary(checkpoint *Checkpoint, path string) error {
	data := marshalCheckpoint(checkpoint)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}

// loadBinary loads checkpoint from protobuf wire format
func (s *Saver) loadBinary(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	checkpoint, err := unmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return checkpoint, nil
}
