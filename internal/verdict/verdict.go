// Package verdict turns an analysis result into a success/uncertain status
// and a qualitative, display-only feedback label.
package verdict

import "fmt"

type Status string

const (
	StatusNotALeaf  Status = "not_a_leaf"
	StatusUncertain Status = "uncertain"
	StatusSuccess   Status = "success"
)

// Severity mirrors the alert styles the front end renders.
type Severity string

const (
	SeveritySuccess   Severity = "success"
	SeverityPrimary   Severity = "primary"
	SeverityWarning   Severity = "warning"
	SeverityDanger    Severity = "danger"
	SeveritySecondary Severity = "secondary"
)

type Feedback struct {
	Label    string   `json:"label"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Thresholds are in percent (0-100).
//
// A result is uncertain when score < MinScore, or when
// score < ConflictScoreCeiling and conflict > MaxConflict.
// Feedback escalates to danger when conflict > WarningConflict and adds an
// accuracy caveat when score < InaccurateScoreCutoff.
type Thresholds struct {
	MinScore              float64
	ConflictScoreCeiling  float64
	MaxConflict           float64
	WarningConflict       float64
	InaccurateScoreCutoff float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinScore:              40,
		ConflictScoreCeiling:  65,
		MaxConflict:           20,
		WarningConflict:       30,
		InaccurateScoreCutoff: 70,
	}
}

const (
	LabelVeryHigh   = "Very High Match"
	LabelHigh       = "High Match"
	LabelMedium     = "Medium Match"
	LabelLow        = "Low Match"
	LabelIncomplete = "Incomplete Data"
)

const (
	conflictMessage   = "However, our models detected several possible conditions. Manual verification is strongly recommended. Make sure the image is clear and try again if needed."
	inaccurateMessage = "This result may be inaccurate. Make sure the image is clear and try again if needed."
	incompleteMessage = "Detailed prediction data was not found."
)

type Policy struct {
	t Thresholds
}

func NewPolicy(t Thresholds) *Policy {
	return &Policy{t: t}
}

// Decide returns StatusUncertain or StatusSuccess. Comparisons are strict:
// a score of exactly MinScore is a success.
func (p *Policy) Decide(score, conflict float64) Status {
	if score < p.t.MinScore || (score < p.t.ConflictScoreCeiling && conflict > p.t.MaxConflict) {
		return StatusUncertain
	}
	return StatusSuccess
}

// Feedback grades score into a label. It does not change the status.
func (p *Policy) Feedback(score, conflict float64) Feedback {
	var f Feedback
	switch {
	case score >= 90:
		f = Feedback{Label: LabelVeryHigh, Severity: SeveritySuccess}
	case score >= 70:
		f = Feedback{Label: LabelHigh, Severity: SeverityPrimary}
	case score >= 60:
		f = Feedback{Label: LabelMedium, Severity: SeverityPrimary}
	default:
		f = Feedback{Label: LabelLow, Severity: SeverityWarning}
	}

	f.Message = f.Label + "."
	switch {
	case conflict > p.t.WarningConflict:
		f.Message += " " + conflictMessage
		f.Severity = SeverityDanger
	case score < p.t.InaccurateScoreCutoff:
		f.Message += " " + inaccurateMessage
	}
	return f
}

// UncertainMessage explains an uncertain status to the user.
func UncertainMessage(score, conflict float64) string {
	return fmt.Sprintf("Unidentifiable. The match score (Score: %.1f%%) or the agreement between models "+
		"(Conflict: %.1f) is too low. Make sure the image is clear, in focus and taken in good lighting.",
		score, conflict)
}

// NotALeafMessage is shown when the gatekeeper rejects an upload.
const NotALeafMessage = "The detected object is not a leaf. Please upload a photo of a tomato leaf."

// Incomplete is the feedback for history records without stored distributions.
func Incomplete() Feedback {
	return Feedback{Label: LabelIncomplete, Message: incompleteMessage, Severity: SeveritySecondary}
}
