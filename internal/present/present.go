// Package present converts a reconciled evaluation into percentage-ready
// values for display. It consumes only the coordinator's output contract.
package present

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/hirescope/hirescope/internal/evaluator"
	logutil "github.com/hirescope/hirescope/internal/logger"
)

const (
	transcriptPreviewLimit = 280

	offlineNotice = "Offline analysis was used for part of this evaluation. " +
		"Re-run with the scoring server reachable for model-based results."
)

// View is the percentage-ready projection of a completed evaluation round.
type View struct {
	Round             string  `json:"round"`
	OverallPercent    int     `json:"overall_percent"`
	ResumePercent     int     `json:"resume_percent"`
	AcademicPercent   int     `json:"academic_percent"`
	FluencyPercent    int     `json:"fluency_percent"`
	VocabularyPercent int     `json:"vocabulary_percent"`
	SkillCount        int     `json:"skill_count"`
	ExperienceYears   float64 `json:"experience_years"`
	Narrative         string  `json:"narrative"`
	TranscriptPreview string  `json:"transcript_preview,omitempty"`
	Offline           bool    `json:"offline"`
	Notice            string  `json:"notice,omitempty"`
}

// FromState builds a View from a coordinator state. The round must be
// complete; intermediate states have nothing to present.
func FromState(state evaluator.State) (*View, error) {
	if state.Final == nil {
		return nil, fmt.Errorf("evaluation round %s is not complete", state.Round)
	}

	scores := state.Final.ComponentScores
	view := &View{
		Round:             state.Round,
		OverallPercent:    toPercent(state.Final.OverallScore),
		ResumePercent:     toPercent(scores.Resume),
		AcademicPercent:   toPercent(scores.Academic),
		FluencyPercent:    toPercent(scores.Fluency),
		VocabularyPercent: toPercent(scores.Vocabulary),
		Narrative:         state.Final.Narrative,
	}

	offline := state.Final.Source == evaluator.SourceFallback

	if state.Resume != nil {
		view.SkillCount = state.Resume.SkillCount
		view.ExperienceYears = state.Resume.ExperienceYears
		offline = offline || state.Resume.Source == evaluator.SourceFallback
	}

	if state.Video != nil {
		view.TranscriptPreview = logutil.TruncateForLog(state.Video.Transcript, transcriptPreviewLimit)
		offline = offline || state.Video.Source == evaluator.SourceFallback
	}

	if offline {
		view.Offline = true
		view.Notice = offlineNotice
	}

	return view, nil
}

// Lines renders the view for terminal output.
func (v *View) Lines() []string {
	lines := []string{
		fmt.Sprintf("Overall score:    %d%%", v.OverallPercent),
		fmt.Sprintf("Resume:           %d%% (%d skills, %.1f years experience)", v.ResumePercent, v.SkillCount, v.ExperienceYears),
		fmt.Sprintf("Academic:         %d%%", v.AcademicPercent),
		fmt.Sprintf("Fluency:          %d%%", v.FluencyPercent),
		fmt.Sprintf("Vocabulary:       %d%%", v.VocabularyPercent),
		"",
		v.Narrative,
	}

	if v.Notice != "" {
		lines = append(lines, "", v.Notice)
	}

	return lines
}

// DumpToTmpFile writes the view as indented JSON to a temporary file and
// returns its name.
func (v *View) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "evaluation_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func toPercent(score float64) int {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return int(math.Round(score * 100))
}
