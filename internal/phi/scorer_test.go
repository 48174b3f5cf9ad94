package phi

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		base float64
		text string
		want float64
	}{
		{"ShortMatch", 0.50, "12345", 0.50},
		{"LongerThanFive", 0.50, "123456", 0.55},
		{"LongerThanTen", 0.50, "12345678901", 0.60},
		{"MixedAlphanumeric", 0.50, "A1234", 0.55},
		{"AllBonuses", 0.50, "AB-12345-CD", 0.65},
		{"ClampedAtCeiling", 0.90, "AB-12345-CD", 0.99},
		{"SeparatorsAreNotLetters", 0.50, "123-45-6789", 0.60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.base, tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%v, %q) = %v, want %v", tt.base, tt.text, got, tt.want)
			}
		})
	}
}

func TestScoreNeverReachesCertainty(t *testing.T) {
	got := Score(0.99, "AB-12345-CD-67890")
	if got > maxConfidence {
		t.Errorf("Score exceeded ceiling: %v", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if Score(0.8, "MRN: 4412876") != Score(0.8, "MRN: 4412876") {
			t.Fatal("Score is not reproducible for identical input")
		}
	}
}
