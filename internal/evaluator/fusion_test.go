package evaluator

import (
	"math"
	"strings"
	"testing"
)

func TestFuseWeightsSumToOne(t *testing.T) {
	t.Parallel()

	overall, _ := Fuse(1, 1, 1, 1)
	if overall != 1.0 {
		t.Fatalf("expected perfect inputs to fuse to exactly 1.0, got %v", overall)
	}

	overall, _ = Fuse(0, 0, 0, 0)
	if overall != 0.0 {
		t.Fatalf("expected zero inputs to fuse to exactly 0.0, got %v", overall)
	}
}

func TestFuseWeightedAverage(t *testing.T) {
	t.Parallel()

	// cgpa 8.5 normalizes to 0.85; 0.27 + 0.17 + 0.20 + 0.2125 = 0.8525
	overall, _ := Fuse(0.9, NormalizeCGPA(8.5), 0.8, 0.85)
	if math.Abs(overall-0.8525) > 1e-9 {
		t.Fatalf("expected overall 0.8525, got %v", overall)
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	t.Parallel()

	first, firstStory := Fuse(0.7, 0.6, 0.8, 0.5)
	second, secondStory := Fuse(0.7, 0.6, 0.8, 0.5)

	if first != second {
		t.Fatalf("same inputs produced different scores: %v vs %v", first, second)
	}
	if firstStory != secondStory {
		t.Fatalf("same inputs produced different narratives")
	}
}

func TestFuseNarrativeBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resume     float64
		academic   float64
		fluency    float64
		vocabulary float64
		want       []string
	}{
		{
			name:   "strong candidate",
			resume: 0.9, academic: 0.95, fluency: 0.85, vocabulary: 0.9,
			want: []string{
				"strong relevant experience",
				"Excellent academic performance",
				"Excellent speaking fluency",
				"Excellent vocabulary range",
				"Strong Recommendation:",
			},
		},
		{
			name:   "middle candidate",
			resume: 0.7, academic: 0.65, fluency: 0.7, vocabulary: 0.6,
			want: []string{
				"adequate experience",
				"Good academic performance",
				"Good speaking fluency",
				"Good vocabulary",
				"Positive Recommendation:",
			},
		},
		{
			name:   "weak candidate",
			resume: 0.3, academic: 0.4, fluency: 0.35, vocabulary: 0.3,
			want: []string{
				"needs significant improvement",
				"below expectations",
				"fluency needs significant improvement",
				"Limited vocabulary range",
				"Not Recommended:",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, story := Fuse(tt.resume, tt.academic, tt.fluency, tt.vocabulary)
			for _, fragment := range tt.want {
				if !strings.Contains(story, fragment) {
					t.Fatalf("narrative missing %q:\n%s", fragment, story)
				}
			}
		})
	}
}

func TestNormalizeCGPA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cgpa float64
		want float64
	}{
		{cgpa: 0, want: 0},
		{cgpa: 5, want: 0.5},
		{cgpa: 10, want: 1},
		{cgpa: 12, want: 1},
		{cgpa: -1, want: 0},
	}

	for _, tt := range tests {
		if got := NormalizeCGPA(tt.cgpa); got != tt.want {
			t.Fatalf("NormalizeCGPA(%v) = %v, want %v", tt.cgpa, got, tt.want)
		}
	}
}
