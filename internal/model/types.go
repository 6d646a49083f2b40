package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

// Metadata describes one exported ONNX model. It is read from a JSON file
// stored next to the model.
type Metadata struct {
	Name         string            `json:"name"`
	InputName    string            `json:"input_name"`
	OutputName   string            `json:"output_name"`
	InputShape   []int64           `json:"input_shape"`
	OutputShape  []int64           `json:"output_shape"`
	Layout       preprocess.Layout `json:"layout"`
	ImageSize    int               `json:"image_size"`
	ApplySoftmax bool              `json:"apply_softmax"`
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.Layout == "" {
		m.Layout = preprocess.NHWC
	}
	if m.ImageSize == 0 {
		m.ImageSize = preprocess.DefaultSize
	}
	if len(m.InputShape) == 0 {
		if m.Layout == preprocess.NCHW {
			m.InputShape = []int64{1, 3, int64(m.ImageSize), int64(m.ImageSize)}
		} else {
			m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
		}
	}
}

func (m *Metadata) validate() error {
	if len(m.OutputShape) == 0 {
		return fmt.Errorf("metadata %q: output_shape is required", m.Name)
	}
	if m.Layout != preprocess.NHWC && m.Layout != preprocess.NCHW {
		return fmt.Errorf("metadata %q: unknown layout %q", m.Name, m.Layout)
	}
	if got, want := shapeSize(m.InputShape), 3*m.ImageSize*m.ImageSize; got != want {
		return fmt.Errorf("metadata %q: input_shape %v does not hold a %dx%d RGB image",
			m.Name, m.InputShape, m.ImageSize, m.ImageSize)
	}
	return nil
}

// InputSize is the number of float32 values one inference consumes.
func (m *Metadata) InputSize() int { return shapeSize(m.InputShape) }

// OutputSize is the number of float32 values one inference produces.
func (m *Metadata) OutputSize() int { return shapeSize(m.OutputShape) }

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// LoadMetadata reads and validates a metadata JSON file.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	metadata.applyDefaults()
	if err := metadata.validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// LoadLabels reads the general classifier's label list. Both a plain JSON
// array of labels and the Keras imagenet_class_index.json layout
// ({"0": ["n01440764", "tench"], ...}) are accepted.
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var index map[string][]string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	labels := make([]string, len(index))
	for k, v := range index {
		var i int
		if _, err := fmt.Sscanf(k, "%d", &i); err != nil || i < 0 || i >= len(labels) {
			return nil, fmt.Errorf("failed to parse labels: bad index %q", k)
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("failed to parse labels: empty entry %q", k)
		}
		labels[i] = v[len(v)-1]
	}
	return labels, nil
}
