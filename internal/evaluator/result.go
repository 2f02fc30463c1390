package evaluator

// Source identifies which scoring path produced a result.
type Source string

const (
	// SourceRemote marks results produced by the remote scoring service.
	SourceRemote Source = "remote"
	// SourceFallback marks results synthesized on-device without a network call.
	SourceFallback Source = "fallback"
)

// ResumeResult is the outcome of scoring a resume. All score values are kept
// in [0, 1]. Results are never mutated after creation.
type ResumeResult struct {
	Score           float64
	SkillCount      int
	ExperienceYears float64
	Source          Source
}

// VideoResult is the outcome of scoring an interview video.
type VideoResult struct {
	FluencyScore    float64
	VocabularyScore float64
	Transcript      string
	Source          Source
}

// ComponentScores breaks the overall score down per assessment area.
type ComponentScores struct {
	Resume     float64
	Academic   float64
	Fluency    float64
	Vocabulary float64
}

// FinalResult is the reconciled outcome of one evaluation round.
type FinalResult struct {
	OverallScore    float64
	ComponentScores ComponentScores
	Narrative       string
	Source          Source
}
