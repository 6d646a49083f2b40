package analysis

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/leaf-api/internal/taxonomy"
)

type letters struct{}

func (letters) Name(i int) string { return string(rune('A' + i)) }

func TestAnalyze_Ranking(t *testing.T) {
	a := []float64{0.70, 0.20, 0.05, 0.05}
	b := []float64{0.60, 0.30, 0.05, 0.05}
	c := []float64{0.80, 0.10, 0.06, 0.04}

	res, err := Analyze(letters{}, a, b, c)
	require.NoError(t, err)

	assert.Equal(t, Prediction{Name: "A", Score: 70}, res.Top)
	assert.Equal(t, Prediction{Name: "B", Score: 20}, res.Secondary)
	assert.Equal(t, "C", res.Tertiary.Name)
	assert.InDelta(t, 5.33, res.Tertiary.Score, 1e-9)
	assert.Equal(t, 0, res.TopIndex)
	assert.InDelta(t, 8.16, res.ConflictScore, 1e-9)
}

func TestAnalyze_ConflictScore(t *testing.T) {
	tests := []struct {
		name string
		top  [3]float64
		want float64
	}{
		{"full agreement", [3]float64{0.9, 0.9, 0.9}, 0},
		{"spread", [3]float64{0.9, 0.5, 0.1}, 32.66},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dists := make([][]float64, 3)
			for m := range dists {
				dists[m] = []float64{tt.top[m], 0, 0, 0}
			}
			// keep class 0 on top for every input
			dists[2][1] = 0.05

			res, err := Analyze(letters{}, dists...)
			require.NoError(t, err)
			assert.Equal(t, "A", res.Top.Name)
			assert.InDelta(t, tt.want, res.ConflictScore, 1e-9)
		})
	}
}

func TestAnalyze_TiesResolveByIndex(t *testing.T) {
	d := []float64{0.25, 0.25, 0.25, 0.25}

	first, err := Analyze(letters{}, d, d, d)
	require.NoError(t, err)
	second, err := Analyze(letters{}, d, d, d)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "A", first.Top.Name)
	assert.Equal(t, "B", first.Secondary.Name)
	assert.Equal(t, "C", first.Tertiary.Name)
}

func TestAnalyze_TopThreeAreSortedSubsetOfAverage(t *testing.T) {
	tx := taxonomy.Default()
	a := []float64{0.01, 0.30, 0.02, 0.10, 0.05, 0.20, 0.02, 0.10, 0.05, 0.10, 0.05}
	b := []float64{0.02, 0.25, 0.03, 0.15, 0.05, 0.25, 0.05, 0.05, 0.05, 0.05, 0.05}
	c := []float64{0.05, 0.35, 0.05, 0.05, 0.05, 0.15, 0.05, 0.05, 0.10, 0.05, 0.05}

	res, err := Analyze(tx, a, b, c)
	require.NoError(t, err)

	all := make([]float64, len(a))
	for i := range a {
		all[i] = round2((a[i] + b[i] + c[i]) / 3 * 100)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))

	scores := []float64{res.Top.Score, res.Secondary.Score, res.Tertiary.Score}
	assert.Equal(t, all[:3], scores)
	assert.Equal(t, "Tomato Early blight", res.Top.Name)
	assert.Equal(t, "Tomato Leaf Mold", res.Secondary.Name)
}

func TestAnalyze_PadsSmallTaxonomy(t *testing.T) {
	res, err := Analyze(letters{}, []float64{0.4, 0.6}, []float64{0.4, 0.6}, []float64{0.4, 0.6})
	require.NoError(t, err)

	assert.Equal(t, "B", res.Top.Name)
	assert.Equal(t, "A", res.Secondary.Name)
	assert.Equal(t, Prediction{Name: NotAvailable, Score: 0}, res.Tertiary)
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := Analyze(letters{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Analyze(letters{}, []float64{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Analyze(letters{}, []float64{0.5, 0.5}, []float64{1})
	assert.Error(t, err)
}

func TestPercentagesRoundTrip(t *testing.T) {
	a := []float64{0.123456, 0.876544}
	b := []float64{0.2, 0.8}
	c := []float64{0.3, 0.7}

	direct, err := Analyze(letters{}, a, b, c)
	require.NoError(t, err)

	stored, err := FromPercentages(letters{}, ToPercentages(a), ToPercentages(b), ToPercentages(c))
	require.NoError(t, err)

	assert.Equal(t, []float64{12.35, 87.65}, ToPercentages(a))
	assert.Equal(t, direct.Top.Name, stored.Top.Name)
	assert.InDelta(t, direct.Top.Score, stored.Top.Score, 0.01)
}
