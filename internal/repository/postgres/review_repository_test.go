//go:build !integration

package postgres

import "testing"

func TestRoundRating(t *testing.T) {
	tests := []struct {
		name string
		avg  float64
		want float64
	}{
		{"no reviews", 0, 0},
		{"half rounds up", 4.25, 4.3},
		{"inexact half rounds up", 4.35, 4.4},
		{"repeating", 13.0 / 3, 4.3},
		{"rounds to whole", 4.95, 5},
		{"already one decimal", 3.5, 3.5},
		{"single five star", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundRating(tt.avg); got != tt.want {
				t.Fatalf("RoundRating(%v) = %v, want %v", tt.avg, got, tt.want)
			}
		})
	}
}
