package mlserver

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Wire DTOs for the scoring service responses.

type resumeResponse struct {
	Score           float64 `json:"score"`
	SkillCount      int     `json:"skill_count"`
	ExperienceYears float64 `json:"experience_years"`
}

type scoreEnvelope struct {
	Score float64 `json:"score"`
}

type videoResponse struct {
	Fluency       scoreEnvelope `json:"fluency"`
	Vocabulary    scoreEnvelope `json:"vocabulary"`
	Transcription string        `json:"transcription"`
}

type evaluateResponse struct {
	OverallScore    float64 `json:"overall_score"`
	ComponentScores struct {
		ResumeScore     float64 `json:"resume_score"`
		AcademicScore   float64 `json:"academic_score"`
		FluencyScore    float64 `json:"fluency_score"`
		VocabularyScore float64 `json:"vocabulary_score"`
	} `json:"component_scores"`
	Recommendation string `json:"recommendation"`
}

// decodeBody maps a parsed JSON body onto a DTO. Weak typing tolerates the
// number representations different server builds emit.
func decodeBody(body map[string]any, target any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return &Error{Kind: KindMalformedResponse, cause: err}
	}
	if err := decoder.Decode(body); err != nil {
		return &Error{Kind: KindMalformedResponse, cause: err}
	}

	return nil
}

// requireFields classifies a body missing any of the dotted field paths as
// malformed before decoding, so a 2xx with a gutted payload never maps to a
// zero-valued result.
func requireFields(body map[string]any, fields ...string) error {
	for _, field := range fields {
		current := body
		keys := strings.Split(field, ".")
		for i, key := range keys {
			value, ok := current[key]
			if !ok || value == nil {
				return &Error{
					Kind: KindMalformedResponse,
					Body: fmt.Sprintf("missing required field %q", field),
				}
			}
			if i == len(keys)-1 {
				break
			}

			nested, ok := value.(map[string]any)
			if !ok {
				return &Error{
					Kind: KindMalformedResponse,
					Body: fmt.Sprintf("field %q is not an object", strings.Join(keys[:i+1], ".")),
				}
			}
			current = nested
		}
	}

	return nil
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
