// Package ensemble runs the disease classifiers over one shared tensor.
package ensemble

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

// ErrInference wraps any classifier failure, including a done context.
var ErrInference = errors.New("inference failed")

// Classifier produces one probability per taxonomy class.
type Classifier interface {
	Name() string
	Predict(ctx context.Context, input preprocess.Tensor) ([]float64, error)
}

// Distribution is one classifier's output.
type Distribution struct {
	Model  string    `json:"model"`
	Scores []float64 `json:"scores"`
}

type Ensemble struct {
	classifiers []Classifier
	classes     int
}

// New returns an ensemble whose members must each emit classes values.
func New(classes int, classifiers ...Classifier) (*Ensemble, error) {
	if len(classifiers) == 0 {
		return nil, errors.New("ensemble needs at least one classifier")
	}
	if classes < 1 {
		return nil, fmt.Errorf("invalid class count %d", classes)
	}
	return &Ensemble{classifiers: classifiers, classes: classes}, nil
}

func (e *Ensemble) Models() []string {
	names := make([]string, len(e.classifiers))
	for i, c := range e.classifiers {
		names[i] = c.Name()
	}
	return names
}

// Predict runs every classifier concurrently. The result keeps member order
// regardless of completion order. The first failure cancels the others and
// no partial result is returned.
func (e *Ensemble) Predict(ctx context.Context, input preprocess.Tensor) ([]Distribution, error) {
	out := make([]Distribution, len(e.classifiers))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range e.classifiers {
		i, c := i, c
		g.Go(func() error {
			scores, err := c.Predict(gctx, input)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInference, c.Name(), err)
			}
			if len(scores) != e.classes {
				return fmt.Errorf("%w: %s returned %d scores, want %d",
					ErrInference, c.Name(), len(scores), e.classes)
			}
			out[i] = Distribution{Model: c.Name(), Scores: scores}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
