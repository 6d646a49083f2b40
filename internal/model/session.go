package model

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("model session closed")

type slot struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func (s *slot) destroy() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}

// Session is a pool of identical ONNX sessions over one model. Each pooled
// session owns its own bound tensors, so concurrent Run calls never share
// buffers. The ONNX environment must be initialized before NewSession.
type Session struct {
	Metadata Metadata
	pool     chan *slot
	slots    []*slot
}

func NewSession(modelPath string, metadata Metadata, poolSize int) (*Session, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Session{
		Metadata: metadata,
		pool:     make(chan *slot, poolSize),
	}

	for i := 0; i < poolSize; i++ {
		sl, err := newSlot(modelPath, metadata)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.slots = append(s.slots, sl)
		s.pool <- sl
	}
	return s, nil
}

func newSlot(modelPath string, metadata Metadata) (*slot, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	return &slot{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Run executes one inference. It blocks until a pooled session is free or ctx
// is done; the returned slice is a copy owned by the caller.
func (s *Session) Run(ctx context.Context, input []float32) ([]float32, error) {
	if want := s.Metadata.InputSize(); len(input) != want {
		return nil, fmt.Errorf("%s: expected %d input values, got %d", s.Metadata.Name, want, len(input))
	}

	var sl *slot
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v, ok := <-s.pool:
		if !ok {
			return nil, ErrClosed
		}
		sl = v
	}
	defer func() { s.pool <- sl }()

	copy(sl.inputTensor.GetData(), input)

	if err := sl.session.Run(); err != nil {
		return nil, fmt.Errorf("%s: inference failed: %w", s.Metadata.Name, err)
	}

	outputData := sl.outputTensor.GetData()
	out := make([]float32, len(outputData))
	copy(out, outputData)

	if s.Metadata.ApplySoftmax {
		softmax(out)
	}
	return out, nil
}

// Close waits for in-flight runs to hand their session back, then destroys
// every pooled session. Later Run calls return ErrClosed.
func (s *Session) Close() {
	for range s.slots {
		sl := <-s.pool
		sl.destroy()
	}
	s.slots = nil
	close(s.pool)
}
