package consolidate

import "math"

// Confidence blend parameters. The vote signal dominates once enough
// samples exist; with few samples the quality heuristic fills in.
const (
	voteShareWeight  = 0.8
	voteMarginWeight = 0.2
	alphaBase        = 0.55
	alphaPerSample   = 0.06
	alphaCap         = 0.85
)

// combineConfidence blends a Laplace-smoothed vote share with the
// winner's quality score into a single confidence in [0,1].
//
// winnerVotes is the winning bucket's vote count, runnerUpVotes the
// second-placed bucket's (0 if none), totalValid the number of non-junk
// attempts, and winnerQuality the winning bucket's best quality score.
func combineConfidence(winnerVotes, runnerUpVotes, totalValid int, winnerQuality float64) float64 {
	if totalValid == 0 {
		return 0
	}

	base := (float64(winnerVotes) + 0.5) / (float64(totalValid) + 1)

	margin := float64(winnerVotes-runnerUpVotes) / math.Max(1, float64(totalValid))
	if margin < 0 {
		margin = 0
	}

	voteSignal := voteShareWeight*base + voteMarginWeight*margin

	alpha := math.Min(alphaCap, alphaBase+alphaPerSample*float64(totalValid))

	conf := alpha*voteSignal + (1-alpha)*clamp01(winnerQuality/maxQuality)
	return round4(clamp01(conf))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round4 rounds to 4 decimals so repeated consolidation of the same
// input is bit-identical.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
