// Package gatekeeper rejects uploads that are unlikely to be usable leaf
// photographs before the disease ensemble runs.
package gatekeeper

import (
	"context"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

// Classifier is a general-purpose image classifier. Classify returns label
// predictions sorted by descending confidence.
type Classifier interface {
	Classify(ctx context.Context, input preprocess.Tensor, k int) ([]LabelPrediction, error)
}

type Filter struct {
	classifier Classifier
	policy     compiledPolicy
	size       int
	layout     preprocess.Layout
}

// NewFilter builds a filter that feeds size x size tensors in layout to classifier.
func NewFilter(classifier Classifier, policy Policy, size int, layout preprocess.Layout) *Filter {
	return &Filter{
		classifier: classifier,
		policy:     compile(policy),
		size:       size,
		layout:     layout,
	}
}

// Check runs the brightness gate and the label cascade on img. Classifier
// failures reject the image (fail-closed) and are reported only through the
// decision; a done ctx is returned as an error so callers can tell a timeout
// apart from a rejection.
func (f *Filter) Check(ctx context.Context, img image.Image) (Decision, error) {
	brightness := preprocess.Brightness(img)
	if d, ok := f.policy.checkBrightness(brightness); !ok {
		log.Info().Str("rule", string(d.Rule)).Float64("brightness", brightness).
			Msg("gatekeeper rejected image")
		return d, nil
	}

	input := preprocess.GatekeeperTensor(img, f.size, f.layout)

	k := f.policy.TopK
	if k <= 0 {
		k = DefaultPolicy().TopK
	}
	preds, err := f.classifier.Classify(ctx, input, k)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Decision{Rule: RuleError, Brightness: brightness}, ctxErr
		}
		log.Error().Err(err).Msg("gatekeeper classification failed, rejecting image")
		return Decision{Rule: RuleError, Brightness: brightness}, nil
	}

	d := f.policy.decide(preds)
	d.Brightness = brightness

	log.Info().Str("rule", string(d.Rule)).
		Bool("admitted", d.Admitted).
		Float64("brightness", brightness).
		Float64("deny", d.DenyConfidence).
		Float64("allow", d.AllowConfidence).
		Interface("predictions", d.Predictions).
		Msg("gatekeeper decision")
	return d, nil
}
