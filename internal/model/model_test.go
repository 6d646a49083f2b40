package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

type fakeRunner struct {
	out   []float32
	err   error
	input []float32
}

func (f *fakeRunner) Run(_ context.Context, input []float32) ([]float32, error) {
	f.input = input
	return f.out, f.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMetadata_Defaults(t *testing.T) {
	path := writeFile(t, "m.json", `{"name":"mobilenet","output_shape":[1,11]}`)

	meta, err := LoadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "input", meta.InputName)
	assert.Equal(t, "output", meta.OutputName)
	assert.Equal(t, preprocess.NHWC, meta.Layout)
	assert.Equal(t, 224, meta.ImageSize)
	assert.Equal(t, []int64{1, 224, 224, 3}, meta.InputShape)
	assert.Equal(t, 224*224*3, meta.InputSize())
	assert.Equal(t, 11, meta.OutputSize())
}

func TestLoadMetadata_NCHW(t *testing.T) {
	path := writeFile(t, "m.json", `{"output_shape":[1,1000],"layout":"nchw","image_size":64}`)

	meta, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 64, 64}, meta.InputShape)
}

func TestLoadMetadata_Invalid(t *testing.T) {
	tests := map[string]string{
		"no output":      `{"input_shape":[1,224,224,3]}`,
		"bad layout":     `{"output_shape":[1,2],"layout":"hwc"}`,
		"shape mismatch": `{"output_shape":[1,2],"input_shape":[1,100,100,3]}`,
		"not json":       `{`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMetadata(writeFile(t, "m.json", content))
			assert.Error(t, err)
		})
	}

	_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	labels, err := LoadLabels(writeFile(t, "l.json", `["tench","goldfish","pot"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"tench", "goldfish", "pot"}, labels)

	labels, err = LoadLabels(writeFile(t, "l.json", `{"1":["n01443537","goldfish"],"0":["n01440764","tench"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"tench", "goldfish"}, labels)

	_, err = LoadLabels(writeFile(t, "l.json", `{"7":["n0","x"]}`))
	assert.Error(t, err)
}

func TestSoftmax(t *testing.T) {
	v := []float32{1, 2, 3}
	softmax(v)

	var sum float32
	for _, x := range v {
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.InDelta(t, 0.6652, v[2], 1e-4)
	assert.Greater(t, v[1], v[0])
}

func TestTopK(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3}, topK([]float32{0.3, 0.1, 0.5, 0.3}, 3))
	assert.Equal(t, []int{1, 0}, topK([]float32{0.1, 0.9}, 5))
}

func TestLabelClassifier(t *testing.T) {
	runner := &fakeRunner{out: []float32{0.05, 0.6, 0.1, 0.25}}
	c := NewLabelClassifier(runner, []string{"tench", "pot", "daisy", "vase"})

	preds, err := c.Classify(context.Background(), preprocess.Tensor{Data: []float32{1, 2}}, 2)
	require.NoError(t, err)

	require.Len(t, preds, 2)
	assert.Equal(t, "pot", preds[0].Label)
	assert.InDelta(t, 0.6, preds[0].Confidence, 1e-6)
	assert.Equal(t, "vase", preds[1].Label)
	assert.Equal(t, []float32{1, 2}, runner.input)
}

func TestLabelClassifier_Errors(t *testing.T) {
	c := NewLabelClassifier(&fakeRunner{out: []float32{1}}, []string{"a", "b"})
	_, err := c.Classify(context.Background(), preprocess.Tensor{}, 5)
	assert.Error(t, err)

	c = NewLabelClassifier(&fakeRunner{err: errors.New("boom")}, []string{"a"})
	_, err = c.Classify(context.Background(), preprocess.Tensor{}, 5)
	assert.Error(t, err)
}

func TestDiseaseClassifier(t *testing.T) {
	runner := &fakeRunner{out: []float32{0.25, 0.75}}
	c := NewDiseaseClassifier("MobileNetV2", runner, preprocess.NHWC)

	assert.Equal(t, "MobileNetV2", c.Name())

	scores, err := c.Predict(context.Background(), preprocess.Tensor{Layout: preprocess.NHWC})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, scores)

	_, err = c.Predict(context.Background(), preprocess.Tensor{Layout: preprocess.NCHW})
	assert.Error(t, err)
}
