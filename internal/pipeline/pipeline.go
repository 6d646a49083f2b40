// Package pipeline is the classify entry point: decode, gatekeeper, ensemble,
// analysis and verdict policy, in that order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/analysis"
	"github.com/Brownie44l1/leaf-api/internal/ensemble"
	"github.com/Brownie44l1/leaf-api/internal/gatekeeper"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/internal/verdict"
)

var (
	ErrDecode           = preprocess.ErrDecode
	ErrInference        = ensemble.ErrInference
	ErrModelUnavailable = errors.New("model unavailable")
)

// Admitter decides whether an image is a plausible leaf photograph.
type Admitter interface {
	Check(ctx context.Context, img image.Image) (gatekeeper.Decision, error)
}

// Predictor runs the disease classifiers.
type Predictor interface {
	Predict(ctx context.Context, input preprocess.Tensor) ([]ensemble.Distribution, error)
}

type Options struct {
	ImageSize  int
	Layout     preprocess.Layout
	Thresholds verdict.Thresholds
	// GatekeeperFailOpen admits every image when no gatekeeper is configured.
	// Otherwise a missing gatekeeper makes Classify return ErrModelUnavailable.
	GatekeeperFailOpen bool
}

type Verdict struct {
	Status        verdict.Status          `json:"status"`
	Analysis      *analysis.Result        `json:"analysis,omitempty"`
	Feedback      *verdict.Feedback       `json:"feedback,omitempty"`
	Message       string                  `json:"message,omitempty"`
	Distributions []ensemble.Distribution `json:"-"`
	Gate          gatekeeper.Decision     `json:"-"`
}

// Pipeline holds shared, read-only model handles and is safe for concurrent use
// when its Admitter and Predictor are.
type Pipeline struct {
	gate      Admitter
	predictor Predictor
	names     analysis.Namer
	policy    *verdict.Policy
	opts      Options
}

// New builds a pipeline. gate or predictor may be nil when the matching models
// failed to load.
func New(gate Admitter, predictor Predictor, names analysis.Namer, opts Options) *Pipeline {
	if opts.ImageSize <= 0 {
		opts.ImageSize = preprocess.DefaultSize
	}
	if opts.Layout == "" {
		opts.Layout = preprocess.NHWC
	}
	return &Pipeline{
		gate:      gate,
		predictor: predictor,
		names:     names,
		policy:    verdict.NewPolicy(opts.Thresholds),
		opts:      opts,
	}
}

// Ready reports whether Classify can run at all.
func (p *Pipeline) Ready() error {
	if p.predictor == nil {
		return fmt.Errorf("%w: disease classifiers not loaded", ErrModelUnavailable)
	}
	if p.gate == nil && !p.opts.GatekeeperFailOpen {
		return fmt.Errorf("%w: gatekeeper not loaded", ErrModelUnavailable)
	}
	return nil
}

// Classify runs the whole decision pipeline over raw image bytes.
func (p *Pipeline) Classify(ctx context.Context, data []byte) (*Verdict, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	img, format, err := preprocess.Decode(data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("format", format).
		Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).
		Msg("image decoded")

	var gate gatekeeper.Decision
	if p.gate == nil {
		log.Warn().Msg("gatekeeper not loaded, admitting image")
		gate = gatekeeper.Decision{Admitted: true, Rule: gatekeeper.RuleBypass}
	} else {
		gate, err = p.gate.Check(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("%w: gatekeeper: %v", ErrInference, err)
		}
	}
	if !gate.Admitted {
		return &Verdict{Status: verdict.StatusNotALeaf, Message: verdict.NotALeafMessage, Gate: gate}, nil
	}

	input := preprocess.DiseaseTensor(img, p.opts.ImageSize, p.opts.Layout)

	dists, err := p.predictor.Predict(ctx, input)
	if err != nil {
		if errors.Is(err, ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	scores := make([][]float64, len(dists))
	for i, d := range dists {
		scores[i] = d.Scores
	}
	result, err := analysis.Analyze(p.names, scores...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	v := &Verdict{
		Status:        p.policy.Decide(result.Top.Score, result.ConflictScore),
		Analysis:      &result,
		Distributions: dists,
		Gate:          gate,
	}
	if v.Status == verdict.StatusUncertain {
		v.Message = verdict.UncertainMessage(result.Top.Score, result.ConflictScore)
		return v, nil
	}

	feedback := p.policy.Feedback(result.Top.Score, result.ConflictScore)
	v.Feedback = &feedback
	return v, nil
}
