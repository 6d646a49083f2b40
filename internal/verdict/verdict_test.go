package verdict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_Boundaries(t *testing.T) {
	p := NewPolicy(DefaultThresholds())

	tests := []struct {
		score    float64
		conflict float64
		want     Status
	}{
		{40.0, 0, StatusSuccess},
		{39.99, 0, StatusUncertain},
		{65.0, 25, StatusSuccess},
		{64.99, 25, StatusUncertain},
		{64.99, 20, StatusSuccess},
		{64.99, 20.01, StatusUncertain},
		{95, 80, StatusSuccess},
		{10, 0, StatusUncertain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Decide(tt.score, tt.conflict), "score=%v conflict=%v", tt.score, tt.conflict)
	}
}

func TestFeedback_Tiers(t *testing.T) {
	p := NewPolicy(DefaultThresholds())

	tests := []struct {
		score    float64
		label    string
		severity Severity
	}{
		{90, LabelVeryHigh, SeveritySuccess},
		{99.5, LabelVeryHigh, SeveritySuccess},
		{89.99, LabelHigh, SeverityPrimary},
		{70, LabelHigh, SeverityPrimary},
		{69.99, LabelMedium, SeverityPrimary},
		{60, LabelMedium, SeverityPrimary},
		{59.99, LabelLow, SeverityWarning},
		{0, LabelLow, SeverityWarning},
	}
	for _, tt := range tests {
		f := p.Feedback(tt.score, 0)
		assert.Equal(t, tt.label, f.Label, "score=%v", tt.score)
		assert.Equal(t, tt.severity, f.Severity, "score=%v", tt.score)
		assert.True(t, strings.HasPrefix(f.Message, tt.label+"."), f.Message)
	}
}

func TestFeedback_Messages(t *testing.T) {
	p := NewPolicy(DefaultThresholds())

	f := p.Feedback(95, 0)
	assert.Equal(t, LabelVeryHigh+".", f.Message)

	f = p.Feedback(65, 10)
	assert.Contains(t, f.Message, "may be inaccurate")
	assert.Equal(t, SeverityPrimary, f.Severity)

	f = p.Feedback(95, 30.01)
	assert.Equal(t, LabelVeryHigh, f.Label)
	assert.Equal(t, SeverityDanger, f.Severity)
	assert.Contains(t, f.Message, "Manual verification")
	assert.NotContains(t, f.Message, "may be inaccurate")

	f = p.Feedback(50, 30)
	assert.Equal(t, SeverityWarning, f.Severity)
	assert.Contains(t, f.Message, "may be inaccurate")
}

func TestUncertainMessage(t *testing.T) {
	msg := UncertainMessage(38.456, 12.3)
	assert.Contains(t, msg, "Score: 38.5%")
	assert.Contains(t, msg, "Conflict: 12.3")
}

func TestIncomplete(t *testing.T) {
	f := Incomplete()
	assert.Equal(t, LabelIncomplete, f.Label)
	assert.Equal(t, SeveritySecondary, f.Severity)
}
