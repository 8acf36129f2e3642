package consolidate

import (
	"sort"

	"github.com/claimsight/claimsight/internal/model"
)

// EmptyValue is the placeholder written when every attempt of an
// extraction step was junk. Always paired with confidence 0.
const EmptyValue = "—"

// VoteBucket groups the attempts of one step that share a normalization
// key. It exists only during consolidation of that step.
type VoteBucket struct {
	Key         string
	DigitKey    bool
	Votes       int
	BestQuality float64

	forms []string       // pretty forms in first-seen order
	count map[string]int // occurrences per pretty form
	order int            // arrival order, the deterministic tie-break of last resort
}

func (b *VoteBucket) add(n Normalized, quality float64) {
	b.Votes++
	if quality > b.BestQuality {
		b.BestQuality = quality
	}
	if b.count == nil {
		b.count = make(map[string]int)
	}
	if _, seen := b.count[n.Pretty]; !seen {
		b.forms = append(b.forms, n.Pretty)
	}
	b.count[n.Pretty]++
}

// Pretty picks the display value for the bucket: the digit key itself
// for ID-like buckets, otherwise the most frequent original form
// (first seen wins ties).
func (b *VoteBucket) Pretty() string {
	if b.DigitKey {
		return b.Key
	}
	best := ""
	bestCount := 0
	for _, f := range b.forms {
		if b.count[f] > bestCount {
			best = f
			bestCount = b.count[f]
		}
	}
	return best
}

// ConsolidateExtraction reduces an extraction step's attempts to one
// final value plus confidence, writing the result onto the step and
// re-tagging each attempt's IsFinal flag.
func ConsolidateExtraction(step *model.Step) {
	buckets := make(map[string]*VoteBucket)
	var ordered []*VoteBucket
	keyOf := make([]string, len(step.Attempts))

	valid := 0
	for i := range step.Attempts {
		a := &step.Attempts[i]
		a.IsFinal = false

		n := Normalize(a.Value, step.FinalKey)
		if n.Junk {
			continue
		}
		valid++
		keyOf[i] = n.Key

		b, ok := buckets[n.Key]
		if !ok {
			b = &VoteBucket{Key: n.Key, DigitKey: n.DigitKey, order: len(ordered)}
			buckets[n.Key] = b
			ordered = append(ordered, b)
		}
		b.add(n, Quality(n, a.Provenance, step.FinalKey))
	}

	if valid == 0 {
		step.FinalValue = EmptyValue
		step.FinalConfidence = 0
		step.Status = model.StepStatusEmpty
		return
	}

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.BestQuality != b.BestQuality {
			return a.BestQuality > b.BestQuality
		}
		return a.order < b.order
	})

	winner := ordered[0]
	runnerUp := 0
	if len(ordered) > 1 {
		runnerUp = ordered[1].Votes
	}

	step.FinalValue = winner.Pretty()
	step.FinalConfidence = combineConfidence(winner.Votes, runnerUp, valid, winner.BestQuality)
	step.Status = model.StepStatusConsolidated

	for i := range step.Attempts {
		step.Attempts[i].IsFinal = keyOf[i] != "" && keyOf[i] == winner.Key
	}
}
