package evaluator

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Safe default substituted when a fallback input is missing. Fallback is the
// error-recovery path itself, so it must never fail upward.
const safeDefaultScore = 0.7

const transcriptHeader = "*** OFFLINE ANALYSIS MODE ***"

// fallbackTier holds the base and jitter values for one seniority tier,
// keyed off sample-data naming conventions.
type fallbackTier struct {
	baseScore        float64
	scoreJitter      float64
	baseSkills       int
	skillJitter      int
	baseExperience   float64
	experienceJitter float64
	videoBase        float64
	videoJitter      float64
}

var fallbackTiers = map[string]fallbackTier{
	"senior": {
		baseScore: 0.80, scoreJitter: 0.15,
		baseSkills: 12, skillJitter: 5,
		baseExperience: 5.0, experienceJitter: 3.0,
		videoBase: 0.75, videoJitter: 0.20,
	},
	"mid": {
		baseScore: 0.70, scoreJitter: 0.20,
		baseSkills: 9, skillJitter: 6,
		baseExperience: 3.0, experienceJitter: 3.0,
		videoBase: 0.70, videoJitter: 0.20,
	},
	"entry": {
		baseScore: 0.65, scoreJitter: 0.25,
		baseSkills: 7, skillJitter: 8,
		baseExperience: 2.0, experienceJitter: 4.0,
		videoBase: 0.65, videoJitter: 0.25,
	},
}

// Fallback synthesizes plausible scores and transcripts on-device when the
// remote scoring path is unavailable.
type Fallback struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

// NewFallback creates a fallback scorer. A zero seed picks a time-based seed;
// any other value makes the produced scores reproducible.
func NewFallback(seed int64, logger *zap.Logger) *Fallback {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fallback{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// ScoreResume synthesizes a resume result from the tier table. The tier is
// detected by substring match on the handle name ("senior"/"mid", else entry).
// The substring heuristic is inherited from the original sample-data naming
// convention and is intentionally kept as is.
func (f *Fallback) ScoreResume(handle Handle) *ResumeResult {
	tier := f.tierFor(handle)

	result := &ResumeResult{
		Score:           clamp01(tier.baseScore + f.uniform(tier.scoreJitter)),
		SkillCount:      tier.baseSkills + f.uniformInt(tier.skillJitter),
		ExperienceYears: tier.baseExperience + f.uniform(tier.experienceJitter),
		Source:          SourceFallback,
	}

	f.logger.Debug("generated offline resume analysis",
		zap.Float64("score", result.Score),
		zap.Int("skill_count", result.SkillCount),
		zap.Float64("experience_years", result.ExperienceYears),
	)

	return result
}

// ScoreVideo synthesizes a video result with independently drawn fluency and
// vocabulary scores and a mock transcript carrying the offline-mode marker.
func (f *Fallback) ScoreVideo(handle Handle) *VideoResult {
	tier := f.tierFor(handle)

	result := &VideoResult{
		FluencyScore:    clamp01(tier.videoBase + f.uniform(tier.videoJitter)),
		VocabularyScore: clamp01(tier.videoBase + f.uniform(tier.videoJitter)),
		Source:          SourceFallback,
	}
	result.Transcript = mockTranscript(result.FluencyScore, result.VocabularyScore)

	f.logger.Debug("generated offline video analysis",
		zap.Float64("fluency_score", result.FluencyScore),
		zap.Float64("vocabulary_score", result.VocabularyScore),
	)

	return result
}

// ScoreFinal fuses already-scored sub-results without any remote attempt.
// Missing inputs are substituted with safe defaults instead of failing.
func (f *Fallback) ScoreFinal(resume *ResumeResult, video *VideoResult, cgpaNormalized float64) *FinalResult {
	resumeScore := safeDefaultScore
	if resume != nil {
		resumeScore = resume.Score
	} else {
		f.logger.Warn("resume result missing during offline evaluation, substituting default score")
	}

	fluency, vocabulary := safeDefaultScore, safeDefaultScore
	if video != nil {
		fluency = video.FluencyScore
		vocabulary = video.VocabularyScore
	} else {
		f.logger.Warn("video result missing during offline evaluation, substituting default scores")
	}

	academic := clamp01(cgpaNormalized)
	overall, story := Fuse(resumeScore, academic, fluency, vocabulary)

	return &FinalResult{
		OverallScore: overall,
		ComponentScores: ComponentScores{
			Resume:     resumeScore,
			Academic:   academic,
			Fluency:    fluency,
			Vocabulary: vocabulary,
		},
		Narrative: story,
		Source:    SourceFallback,
	}
}

func (f *Fallback) tierFor(handle Handle) fallbackTier {
	name := ""
	if handle != nil {
		name = strings.ToLower(handle.Name())
	}

	switch {
	case strings.Contains(name, "senior"):
		return fallbackTiers["senior"]
	case strings.Contains(name, "mid"):
		return fallbackTiers["mid"]
	default:
		return fallbackTiers["entry"]
	}
}

func (f *Fallback) uniform(jitter float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rng.Float64() * jitter
}

func (f *Fallback) uniformInt(jitter int) int {
	if jitter <= 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rng.Intn(jitter + 1)
}

func mockTranscript(fluency, vocabulary float64) string {
	var b strings.Builder
	b.WriteString(transcriptHeader)
	b.WriteString("\n\n")
	b.WriteString("This is a mock transcription generated when the server is unavailable. ")
	b.WriteString("The candidate demonstrates adequate communication skills for a technical position. ")
	b.WriteString("Vocabulary usage includes technical terms relevant to the field. ")
	b.WriteString("Speech patterns show coherent thought process with appropriate pauses.")

	b.WriteString("\n\nFluency assessment: ")
	switch {
	case fluency > 0.8:
		b.WriteString("Excellent, with clear articulation and natural flow.")
	case fluency > 0.7:
		b.WriteString("Good, with occasional hesitations but maintains coherence.")
	default:
		b.WriteString("Acceptable, with room for improvement in sentence flow and clarity.")
	}

	b.WriteString("\n\nVocabulary assessment: ")
	switch {
	case vocabulary > 0.8:
		b.WriteString("Excellent use of technical and domain-specific terminology.")
	case vocabulary > 0.7:
		b.WriteString("Good range of terminology with appropriate usage in context.")
	default:
		b.WriteString("Basic technical vocabulary with occasional misuse of terms.")
	}

	return b.String()
}
