package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Brownie44l1/leaf-api/internal/gatekeeper"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

// Runner executes one inference over a flat float32 input.
type Runner interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
}

// DiseaseClassifier adapts a Runner to the ensemble member contract.
type DiseaseClassifier struct {
	name   string
	runner Runner
	layout preprocess.Layout
}

func NewDiseaseClassifier(name string, runner Runner, layout preprocess.Layout) *DiseaseClassifier {
	return &DiseaseClassifier{name: name, runner: runner, layout: layout}
}

func (c *DiseaseClassifier) Name() string { return c.name }

func (c *DiseaseClassifier) Predict(ctx context.Context, input preprocess.Tensor) ([]float64, error) {
	if input.Layout != c.layout {
		return nil, fmt.Errorf("%s expects %s input, got %s", c.name, c.layout, input.Layout)
	}
	out, err := c.runner.Run(ctx, input.Data)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(out))
	for i, v := range out {
		scores[i] = float64(v)
	}
	return scores, nil
}

// LabelClassifier adapts the general-purpose classifier to the gatekeeper.
type LabelClassifier struct {
	runner Runner
	labels []string
}

func NewLabelClassifier(runner Runner, labels []string) *LabelClassifier {
	return &LabelClassifier{runner: runner, labels: labels}
}

// Classify returns the k most confident labels, highest first.
func (c *LabelClassifier) Classify(ctx context.Context, input preprocess.Tensor, k int) ([]gatekeeper.LabelPrediction, error) {
	out, err := c.runner.Run(ctx, input.Data)
	if err != nil {
		return nil, err
	}
	if len(out) != len(c.labels) {
		return nil, fmt.Errorf("classifier returned %d scores for %d labels", len(out), len(c.labels))
	}

	idx := topK(out, k)
	preds := make([]gatekeeper.LabelPrediction, len(idx))
	for i, j := range idx {
		preds[i] = gatekeeper.LabelPrediction{Label: c.labels[j], Confidence: float64(out[j])}
	}
	return preds, nil
}

// topK returns the indices of the k largest values, largest first, lower
// index first on ties.
func topK(values []float32, k int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

func softmax(logits []float32) {
	if len(logits) == 0 {
		return
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		logits[i] = float32(e)
		sum += e
	}
	for i := range logits {
		logits[i] = float32(float64(logits[i]) / sum)
	}
}
