package store

import (
	"math"
	"testing"
)

func TestSaturateStrength(t *testing.T) {
	tests := []struct {
		name     string
		old      float64
		observed float64
		want     float64
	}{
		{name: "first observation", old: 0, observed: 0.6, want: 0.6},
		{name: "reinforcement", old: 0.6, observed: 0.9, want: 0.96},
		{name: "never exceeds one", old: 1, observed: 1, want: 1},
		{name: "zero observation keeps value", old: 0.5, observed: 0, want: 0.5},
		{name: "clamps negative observation", old: 0.5, observed: -1, want: 0.5},
		{name: "clamps oversized observation", old: 0.5, observed: 2, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SaturateStrength(tt.old, tt.observed)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SaturateStrength(%v, %v) = %v, want %v", tt.old, tt.observed, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("strength %v out of [0,1]", got)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
