package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/leaf-api/internal/ensemble"
	"github.com/Brownie44l1/leaf-api/internal/gatekeeper"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/internal/taxonomy"
	"github.com/Brownie44l1/leaf-api/internal/verdict"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	m.Run()
}

type MockAdmitter struct {
	mock.Mock
}

func (m *MockAdmitter) Check(ctx context.Context, img image.Image) (gatekeeper.Decision, error) {
	args := m.Called(ctx, img)
	return args.Get(0).(gatekeeper.Decision), args.Error(1)
}

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, input preprocess.Tensor) ([]ensemble.Distribution, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ensemble.Distribution), args.Error(1)
}

type MockLabels struct {
	mock.Mock
}

func (m *MockLabels) Classify(ctx context.Context, input preprocess.Tensor, k int) ([]gatekeeper.LabelPrediction, error) {
	args := m.Called(ctx, input, k)
	return args.Get(0).([]gatekeeper.LabelPrediction), args.Error(1)
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dist(top int, p float64) []float64 {
	n := len(taxonomy.Classes)
	d := make([]float64, n)
	rest := (1 - p) / float64(n-1)
	for i := range d {
		d[i] = rest
	}
	d[top] = p
	return d
}

func dists(top int, ps ...float64) []ensemble.Distribution {
	names := []string{"MobileNetV2", "EfficientNetV2M", "ResNet101"}
	out := make([]ensemble.Distribution, len(ps))
	for i, p := range ps {
		out[i] = ensemble.Distribution{Model: names[i], Scores: dist(top, p)}
	}
	return out
}

func admitted() gatekeeper.Decision {
	return gatekeeper.Decision{Admitted: true, Rule: gatekeeper.RuleAllowlist}
}

func newPipeline(gate Admitter, predictor Predictor, failOpen bool) *Pipeline {
	return New(gate, predictor, taxonomy.Default(), Options{
		ImageSize:          16,
		Layout:             preprocess.NHWC,
		Thresholds:         verdict.DefaultThresholds(),
		GatekeeperFailOpen: failOpen,
	})
}

var leafGreen = color.RGBA{60, 150, 60, 255}

func TestClassify_Success(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).Return(admitted(), nil)
	predictor := new(MockPredictor)
	predictor.On("Predict", mock.Anything, mock.AnythingOfType("preprocess.Tensor")).
		Return(dists(1, 0.95, 0.93, 0.97), nil)

	v, err := newPipeline(gate, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusSuccess, v.Status)
	require.NotNil(t, v.Analysis)
	assert.Equal(t, "Tomato Early blight", v.Analysis.Top.Name)
	assert.InDelta(t, 95.0, v.Analysis.Top.Score, 1e-9)
	assert.InDelta(t, 1.63, v.Analysis.ConflictScore, 1e-9)
	require.NotNil(t, v.Feedback)
	assert.Equal(t, verdict.LabelVeryHigh, v.Feedback.Label)
	assert.Len(t, v.Distributions, 3)

	input := predictor.Calls[0].Arguments.Get(1).(preprocess.Tensor)
	assert.Equal(t, []int64{1, 16, 16, 3}, input.Shape)
	assert.InDelta(t, 60.0/255, input.Data[0], 0.01)
}

func TestClassify_Uncertain(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).Return(admitted(), nil)
	predictor := new(MockPredictor)
	predictor.On("Predict", mock.Anything, mock.Anything).Return(dists(4, 0.9, 0.5, 0.4), nil)

	v, err := newPipeline(gate, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusUncertain, v.Status)
	require.NotNil(t, v.Analysis)
	assert.Equal(t, "Tomato Late blight", v.Analysis.Top.Name)
	assert.Greater(t, v.Analysis.ConflictScore, 20.0)
	assert.Nil(t, v.Feedback)
	assert.Contains(t, v.Message, "Unidentifiable")
}

func TestClassify_NotALeafSkipsEnsemble(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).
		Return(gatekeeper.Decision{Rule: gatekeeper.RuleDenylist, DenyConfidence: 0.4}, nil)
	predictor := new(MockPredictor)

	v, err := newPipeline(gate, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusNotALeaf, v.Status)
	assert.Nil(t, v.Analysis)
	assert.Equal(t, gatekeeper.RuleDenylist, v.Gate.Rule)
	predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestClassify_DarkImageWithRealFilter(t *testing.T) {
	labels := new(MockLabels)
	filter := gatekeeper.NewFilter(labels, gatekeeper.DefaultPolicy(), 16, preprocess.NHWC)
	predictor := new(MockPredictor)

	v, err := newPipeline(filter, predictor, false).
		Classify(context.Background(), pngBytes(t, color.RGBA{30, 30, 30, 255}))
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusNotALeaf, v.Status)
	assert.Equal(t, gatekeeper.RuleTooDark, v.Gate.Rule)
	labels.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)
	predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestClassify_DecodeError(t *testing.T) {
	gate := new(MockAdmitter)
	predictor := new(MockPredictor)

	_, err := newPipeline(gate, predictor, false).Classify(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, ErrDecode)
	gate.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestClassify_PredictorError(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).Return(admitted(), nil)
	predictor := new(MockPredictor)
	predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("session crashed"))

	_, err := newPipeline(gate, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	assert.ErrorIs(t, err, ErrInference)
}

func TestClassify_GateContextError(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).
		Return(gatekeeper.Decision{Rule: gatekeeper.RuleError}, context.DeadlineExceeded)
	predictor := new(MockPredictor)

	_, err := newPipeline(gate, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	assert.ErrorIs(t, err, ErrInference)
}

func TestClassify_MissingModels(t *testing.T) {
	predictor := new(MockPredictor)

	_, err := newPipeline(nil, predictor, false).Classify(context.Background(), pngBytes(t, leafGreen))
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = newPipeline(new(MockAdmitter), nil, false).Classify(context.Background(), pngBytes(t, leafGreen))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestClassify_FailOpenWithoutGatekeeper(t *testing.T) {
	predictor := new(MockPredictor)
	predictor.On("Predict", mock.Anything, mock.Anything).Return(dists(3, 0.8, 0.8, 0.8), nil)

	v, err := newPipeline(nil, predictor, true).Classify(context.Background(), pngBytes(t, leafGreen))
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusSuccess, v.Status)
	assert.Equal(t, gatekeeper.RuleBypass, v.Gate.Rule)
	assert.Equal(t, "Tomato Healthy", v.Analysis.Top.Name)
}

func TestClassify_Idempotent(t *testing.T) {
	gate := new(MockAdmitter)
	gate.On("Check", mock.Anything, mock.Anything).Return(admitted(), nil)
	predictor := new(MockPredictor)
	predictor.On("Predict", mock.Anything, mock.Anything).Return(dists(7, 0.7, 0.6, 0.65), nil)

	p := newPipeline(gate, predictor, false)
	data := pngBytes(t, leafGreen)

	first, err := p.Classify(context.Background(), data)
	require.NoError(t, err)
	second, err := p.Classify(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
