package gatekeeper

import "strings"

// Policy holds the tunable admission rules. Confidences are in [0,1] and
// brightness is mean 8-bit luma.
//
// The cascade after the brightness gate runs in this order:
//
//	override: allow > OverrideAllow && allow > OverrideRatio*deny  -> admit
//	deny:     deny > DenyThreshold                                 -> reject
//	allow:    allow > AllowThreshold                               -> admit
//	default:                                                       -> reject
//
// where deny and allow are the highest confidences among the top-K labels that
// contain a denylist or allowlist keyword as a whole word.
type Policy struct {
	MinBrightness  float64
	MaxBrightness  float64
	TopK           int
	OverrideAllow  float64
	OverrideRatio  float64
	DenyThreshold  float64
	AllowThreshold float64
	Denylist       []string
	Allowlist      []string
}

var defaultDenylist = []string{
	// people and animals
	"person", "face", "man", "woman", "hand", "hair", "foot", "leg", "arm", "cat", "dog", "animal",
	// electronics and office
	"computer", "keyboard", "screen", "monitor", "mouse", "laptop", "remote_control", "book", "paper",
	"document", "television",
	// clothing and fabric
	"jean", "shirt", "clothing", "fabric", "textile", "shoe", "wig", "hat",
	// vehicles
	"car", "vehicle", "wheel", "truck",
	// indoor and outdoor objects
	"building", "table", "chair", "desk", "wall", "floor", "ceiling", "bottle", "cup", "shop", "iron",
	"wardrobe", "medicine_chest", "sofa", "couch", "bed", "lamp", "curtain", "plate", "bowl", "knife", "fork",
}

var defaultAllowlist = []string{
	"leaf", "plant", "flower", "vine", "garden", "vegetable", "foliage", "stem", "branch",
	"tomato", "greenhouse", "pot", "planter", "soil", "trellis",
	"fruit", "produce",
	// ImageNet classes that show up for close-up leaf shots
	"knot", "vase", "shoji", "pedestal",
}

func DefaultPolicy() Policy {
	return Policy{
		MinBrightness:  50,
		MaxBrightness:  220,
		TopK:           5,
		OverrideAllow:  0.70,
		OverrideRatio:  2,
		DenyThreshold:  0.30,
		AllowThreshold: 0.05,
		Denylist:       append([]string(nil), defaultDenylist...),
		Allowlist:      append([]string(nil), defaultAllowlist...),
	}
}

// Rule names the step of the cascade that produced a decision.
type Rule string

const (
	RuleTooDark   Rule = "too_dark"
	RuleTooBright Rule = "too_bright"
	RuleOverride  Rule = "override"
	RuleDenylist  Rule = "denylist"
	RuleAllowlist Rule = "allowlist"
	RuleDefault   Rule = "default_reject"
	RuleError     Rule = "error"
	RuleBypass    Rule = "bypass"
)

// LabelPrediction is one general-classifier label with its confidence.
type LabelPrediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted        bool              `json:"admitted"`
	Rule            Rule              `json:"rule"`
	Brightness      float64           `json:"brightness"`
	DenyConfidence  float64           `json:"deny_confidence"`
	AllowConfidence float64           `json:"allow_confidence"`
	Predictions     []LabelPrediction `json:"predictions,omitempty"`
}

// keywordSet matches keywords as whole words. Multi-word keywords
// (remote_control) match when their words appear consecutively in a label.
type keywordSet struct {
	single map[string]struct{}
	multi  [][]string
}

func newKeywordSet(keywords []string) keywordSet {
	ks := keywordSet{single: make(map[string]struct{}, len(keywords))}
	for _, kw := range keywords {
		words := splitWords(kw)
		switch len(words) {
		case 0:
		case 1:
			ks.single[words[0]] = struct{}{}
		default:
			ks.multi = append(ks.multi, words)
		}
	}
	return ks
}

func (ks keywordSet) matches(words []string) bool {
	for _, w := range words {
		if _, ok := ks.single[w]; ok {
			return true
		}
	}
	for _, phrase := range ks.multi {
		if containsPhrase(words, phrase) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j := range phrase {
			if words[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// splitWords lowercases a label and splits it on underscores and whitespace.
func splitWords(label string) []string {
	return strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return r == '_' || r == ' ' || r == '\t'
	})
}

type compiledPolicy struct {
	Policy
	deny  keywordSet
	allow keywordSet
}

func compile(p Policy) compiledPolicy {
	return compiledPolicy{
		Policy: p,
		deny:   newKeywordSet(p.Denylist),
		allow:  newKeywordSet(p.Allowlist),
	}
}

func (p compiledPolicy) checkBrightness(brightness float64) (Decision, bool) {
	switch {
	case brightness < p.MinBrightness:
		return Decision{Rule: RuleTooDark, Brightness: brightness}, false
	case brightness > p.MaxBrightness:
		return Decision{Rule: RuleTooBright, Brightness: brightness}, false
	}
	return Decision{Brightness: brightness}, true
}

func (p compiledPolicy) decide(preds []LabelPrediction) Decision {
	if p.TopK > 0 && len(preds) > p.TopK {
		preds = preds[:p.TopK]
	}

	var deny, allow float64
	for _, pred := range preds {
		words := splitWords(pred.Label)
		if p.deny.matches(words) && pred.Confidence > deny {
			deny = pred.Confidence
		}
		if p.allow.matches(words) && pred.Confidence > allow {
			allow = pred.Confidence
		}
	}

	d := Decision{DenyConfidence: deny, AllowConfidence: allow, Predictions: preds}
	switch {
	case allow > p.OverrideAllow && allow > p.OverrideRatio*deny:
		d.Admitted, d.Rule = true, RuleOverride
	case deny > p.DenyThreshold:
		d.Rule = RuleDenylist
	case allow > p.AllowThreshold:
		d.Admitted, d.Rule = true, RuleAllowlist
	default:
		d.Rule = RuleDefault
	}
	return d
}

// Decide applies the keyword cascade to label predictions sorted by
// descending confidence. The brightness gate is not part of Decide.
func (p Policy) Decide(preds []LabelPrediction) Decision {
	return compile(p).decide(preds)
}
