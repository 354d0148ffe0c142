package app

import "math"

// BotThreshold is the score at or above which a request is treated as
// automated. Scores are in [0, 1].
const BotThreshold = 0.7

// BehaviorSample carries client-side interaction measurements collected
// during signup: cursor positions over time and inter-key intervals in
// milliseconds. Absence of a sample is not itself suspicious; transports
// without a pointer submit none.
type BehaviorSample struct {
	MouseXs      []float64 `json:"mouseXs"`
	MouseYs      []float64 `json:"mouseYs"`
	KeyGapsMilli []float64 `json:"keyGapsMilli"`
}

// BotLikelihoodScorer estimates how likely a behavior sample came from
// automation. Implementations must be pure so thresholds can be tested
// independently.
type BotLikelihoodScorer interface {
	// Score returns a likelihood in [0, 1]; higher means more bot-like.
	Score(sample BehaviorSample) float64
}

// VarianceScorer flags the two signatures of scripted input: cursor paths
// with near-zero positional variance (teleporting or perfectly straight
// movement) and keystroke gaps with near-zero spread (machine-regular
// typing). Humans are noisy on both axes.
type VarianceScorer struct {
	// MinMouseVariance is the positional variance (px²) below which mouse
	// movement counts as scripted. Defaults to 4.0 when zero.
	MinMouseVariance float64
	// MinKeyGapSpread is the standard deviation (ms) below which keystroke
	// timing counts as scripted. Defaults to 15.0 when zero.
	MinKeyGapSpread float64
}

// Score implements BotLikelihoodScorer. Each scripted-looking axis
// contributes 0.5; a sample with too few data points on an axis scores 0
// for that axis rather than guessing.
func (v VarianceScorer) Score(sample BehaviorSample) float64 {
	minVar := v.MinMouseVariance
	if minVar == 0 {
		minVar = 4.0
	}
	minSpread := v.MinKeyGapSpread
	if minSpread == 0 {
		minSpread = 15.0
	}

	score := 0.0
	if len(sample.MouseXs) >= 5 && len(sample.MouseXs) == len(sample.MouseYs) {
		if variance(sample.MouseXs)+variance(sample.MouseYs) < minVar {
			score += 0.5
		}
	}
	if len(sample.KeyGapsMilli) >= 5 {
		if math.Sqrt(variance(sample.KeyGapsMilli)) < minSpread {
			score += 0.5
		}
	}
	return score
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	v := 0.0
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return v / float64(len(xs))
}
