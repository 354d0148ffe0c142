package app

import "testing"

func TestVarianceScorer(t *testing.T) {
	tests := []struct {
		name   string
		sample BehaviorSample
		want   float64
	}{
		{
			name: "scripted on both axes",
			sample: BehaviorSample{
				MouseXs:      []float64{10, 10, 10, 10, 10},
				MouseYs:      []float64{20, 20, 20, 20, 20},
				KeyGapsMilli: []float64{100, 100, 100, 100, 100},
			},
			want: 1.0,
		},
		{
			name: "scripted mouse only",
			sample: BehaviorSample{
				MouseXs:      []float64{10, 10, 10, 10, 10},
				MouseYs:      []float64{20, 20, 20, 20, 20},
				KeyGapsMilli: []float64{40, 180, 95, 260, 70},
			},
			want: 0.5,
		},
		{
			name: "machine-regular typing only",
			sample: BehaviorSample{
				MouseXs:      []float64{10, 85, 42, 190, 133},
				MouseYs:      []float64{20, 95, 160, 48, 210},
				KeyGapsMilli: []float64{100, 101, 99, 100, 100},
			},
			want: 0.5,
		},
		{
			name: "human on both axes",
			sample: BehaviorSample{
				MouseXs:      []float64{10, 85, 42, 190, 133},
				MouseYs:      []float64{20, 95, 160, 48, 210},
				KeyGapsMilli: []float64{40, 180, 95, 260, 70},
			},
			want: 0.0,
		},
		{
			name: "too few points scores nothing",
			sample: BehaviorSample{
				MouseXs:      []float64{10, 10},
				MouseYs:      []float64{20, 20},
				KeyGapsMilli: []float64{100, 100, 100},
			},
			want: 0.0,
		},
		{
			name: "mismatched coordinate lengths ignored",
			sample: BehaviorSample{
				MouseXs: []float64{10, 10, 10, 10, 10},
				MouseYs: []float64{20, 20, 20},
			},
			want: 0.0,
		},
		{
			name:   "empty sample",
			sample: BehaviorSample{},
			want:   0.0,
		},
	}

	scorer := VarianceScorer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.sample)
			if got != tt.want {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVarianceScorerThreshold(t *testing.T) {
	scripted := BehaviorSample{
		MouseXs:      []float64{10, 10, 10, 10, 10},
		MouseYs:      []float64{20, 20, 20, 20, 20},
		KeyGapsMilli: []float64{100, 100, 100, 100, 100},
	}
	if got := (VarianceScorer{}).Score(scripted); got < BotThreshold {
		t.Fatalf("fully scripted sample scores %v, below threshold %v", got, BotThreshold)
	}

	oneAxis := BehaviorSample{
		MouseXs:      []float64{10, 10, 10, 10, 10},
		MouseYs:      []float64{20, 20, 20, 20, 20},
		KeyGapsMilli: []float64{40, 180, 95, 260, 70},
	}
	if got := (VarianceScorer{}).Score(oneAxis); got >= BotThreshold {
		t.Fatalf("single scripted axis scores %v, at or above threshold %v", got, BotThreshold)
	}
}
