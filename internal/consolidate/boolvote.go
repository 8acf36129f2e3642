package consolidate

import (
	"strings"

	"github.com/claimsight/claimsight/internal/model"
)

// Fixed true/false lexicon for string votes. Anything outside it is
// excluded from voting rather than coerced.
var (
	trueWords = map[string]struct{}{
		"ja": {}, "yes": {}, "y": {}, "wahr": {}, "true": {}, "1": {},
	}
	falseWords = map[string]struct{}{
		"nein": {}, "no": {}, "n": {}, "falsch": {}, "false": {}, "0": {},
	}
)

// ParseVote interprets a raw attempt value as a boolean vote. The second
// return is false for unparseable values, which are excluded from voting.
func ParseVote(raw any) (vote bool, ok bool) {
	switch v := Unwrap(raw).(type) {
	case bool:
		return v, true
	case string:
		w := strings.ToLower(strings.TrimSpace(v))
		if _, yes := trueWords[w]; yes {
			return true, true
		}
		if _, no := falseWords[w]; no {
			return false, true
		}
		return false, false
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
		return false, false
	case int:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// ConsolidateBoolean majority-votes a score or decision step, writing the
// winner and confidence onto the step and re-tagging IsFinal on every
// attempt that voted with the winner.
//
// Ties favor true. With zero parseable attempts the result is
// false with confidence 0, which callers must treat as unknown rather
// than as a reasoned negative.
func ConsolidateBoolean(step *model.Step) {
	votes := make([]*bool, len(step.Attempts))

	trues, falses := 0, 0
	for i := range step.Attempts {
		step.Attempts[i].IsFinal = false
		v, ok := ParseVote(step.Attempts[i].Value)
		if !ok {
			continue
		}
		votes[i] = &v
		if v {
			trues++
		} else {
			falses++
		}
	}

	total := trues + falses
	if total == 0 {
		step.FinalValue = false
		step.FinalConfidence = 0
		step.Status = model.StepStatusEmpty
		return
	}

	winner := trues >= falses

	majority := trues
	if falses > trues {
		majority = falses
	}
	step.FinalValue = winner
	step.FinalConfidence = round4((float64(majority) + 0.5) / (float64(total) + 1))
	step.Status = model.StepStatusConsolidated

	for i, v := range votes {
		if v != nil && *v == winner {
			step.Attempts[i].IsFinal = true
		}
	}
}
