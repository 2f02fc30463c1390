package evaluator

import "strings"

// Fusion weights. They sum to exactly 1.0 so that Fuse(1, 1, 1, 1) == 1.
const (
	weightResume     = 0.30
	weightAcademic   = 0.20
	weightFluency    = 0.25
	weightVocabulary = 0.25
)

// NormalizeCGPA maps a CGPA on the 10-point scale into [0, 1].
func NormalizeCGPA(cgpa float64) float64 {
	return clamp01(cgpa / 10)
}

// Fuse combines the four normalized component scores into one weighted
// overall score and a qualitative narrative. Deterministic, no I/O.
func Fuse(resume, academic, fluency, vocabulary float64) (float64, string) {
	overall := weightResume*resume +
		weightAcademic*academic +
		weightFluency*fluency +
		weightVocabulary*vocabulary

	return overall, narrative(overall, resume, academic, fluency, vocabulary)
}

func narrative(overall, resume, academic, fluency, vocabulary float64) string {
	clauses := []string{
		resumeClause(resume),
		academicClause(academic),
		fluencyClause(fluency),
		vocabularyClause(vocabulary),
		recommendationClause(overall),
	}

	return strings.Join(clauses, " ")
}

func resumeClause(score float64) string {
	switch {
	case score >= 0.8:
		return "The resume demonstrates strong relevant experience and skills."
	case score >= 0.6:
		return "The resume shows adequate experience but could better highlight relevant skills."
	default:
		return "The resume needs significant improvement to highlight relevant experience and skills."
	}
}

func academicClause(score float64) string {
	switch {
	case score >= 0.8:
		return "Excellent academic performance demonstrates strong learning capability."
	case score >= 0.6:
		return "Good academic performance shows adequate educational foundation."
	default:
		return "Academic performance below expectations."
	}
}

func fluencyClause(score float64) string {
	switch {
	case score >= 0.8:
		return "Excellent speaking fluency with clear articulation and natural flow."
	case score >= 0.6:
		return "Good speaking fluency but could improve sentence structure and reduce filler words."
	default:
		return "Speaking fluency needs significant improvement."
	}
}

func vocabularyClause(score float64) string {
	switch {
	case score >= 0.8:
		return "Excellent vocabulary range and appropriate use of technical terminology."
	case score >= 0.6:
		return "Good vocabulary but could benefit from expanding technical and domain-specific terms."
	default:
		return "Limited vocabulary range. Consider expanding professional and technical vocabulary."
	}
}

func recommendationClause(overall float64) string {
	switch {
	case overall >= 0.8:
		return "Strong Recommendation: This candidate demonstrates excellent qualifications across all assessment areas."
	case overall >= 0.65:
		return "Positive Recommendation: This candidate shows strong potential with good qualifications."
	default:
		return "Not Recommended: This candidate does not meet the required qualifications for the position."
	}
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
