package rule

import "github.com/rotisserie/eris"

// LabelRule pairs a rule expression with the label it selects.
type LabelRule struct {
	Rule  string `yaml:"rule" mapstructure:"rule" json:"rule"`
	Label string `yaml:"label" mapstructure:"label" json:"label"`
}

// LabelSet is an ordered list of compiled label rules. The first rule
// that matches wins.
type LabelSet struct {
	rules  []*Rule
	labels []string
}

// NewLabelSet compiles the given rules. A single bad rule fails the
// whole set so misconfiguration surfaces at startup, not per request.
func NewLabelSet(rules []LabelRule) (*LabelSet, error) {
	s := &LabelSet{}
	for _, lr := range rules {
		r, err := Compile(lr.Rule)
		if err != nil {
			return nil, eris.Wrapf(err, "label %q", lr.Label)
		}
		s.rules = append(s.rules, r)
		s.labels = append(s.labels, lr.Label)
	}
	return s, nil
}

// Pick returns the label of the first rule matching the given score.
// The second return is false when no rule matches.
func (s *LabelSet) Pick(score float64) (string, bool) {
	vars := map[string]float64{"score": score}
	for i, r := range s.rules {
		ok, err := r.Eval(vars)
		if err != nil {
			// Compile validated the expression; an eval error here means
			// an unknown variable, which cannot match anything.
			continue
		}
		if ok {
			return s.labels[i], true
		}
	}
	return "", false
}
