package mlserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hirescope/hirescope/internal/evaluator"
	logutil "github.com/hirescope/hirescope/internal/logger"
)

const (
	analyzeResumePath = "/api/analyze_resume"
	analyzeVideoPath  = "/api/analyze_video"
	evaluatePath      = "/api/evaluate"
	resetPath         = "/api/reset_evaluation"

	// ML inference is slow, so the request timeouts are generous. The connect
	// timeout stays shorter: an unreachable server should fail fast.
	defaultConnectTimeout = 30 * time.Second
	defaultRequestTimeout = 60 * time.Second

	// Defaults when the handle cannot name its own MIME type.
	defaultResumeType = "application/pdf"
	defaultVideoType  = "video/mp4"

	// Transcripts can be long; log a preview only.
	transcriptLogLimit = 120
)

// Config carries the connection settings for the scoring service.
type Config struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client translates domain requests into scoring-service calls and normalizes
// every outcome into a result or a typed *Error. It never panics past its
// boundary and never returns an untyped transport failure.
type Client struct {
	baseURL string
	token   string
	probe   *Probe
	logger  *zap.Logger

	HTTPClient *http.Client
}

// New creates a scoring-service client. The probe, when provided, is latched
// unavailable as a side effect of connection-refused failures.
func New(cfg Config, probe *Probe, logger *zap.Logger) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	request := cfg.RequestTimeout
	if request <= 0 {
		request = defaultRequestTimeout
	}
	logger = logutil.WithFields(logger, logutil.EvaluationFields("", cfg.URL)...)

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connect}).DialContext,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		probe:   probe,
		logger:  logger,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   request,
		},
	}
}

// SubmitResume uploads a resume for analysis and maps the response.
func (c *Client) SubmitResume(ctx context.Context, handle evaluator.Handle) (*evaluator.ResumeResult, error) {
	body, err := c.postMultipart(ctx, analyzeResumePath, []filePart{
		{field: "file", handle: handle, defaultType: defaultResumeType},
	}, nil)
	if err != nil {
		return nil, err
	}

	if err := requireFields(body, "score"); err != nil {
		return nil, err
	}

	var dto resumeResponse
	if err := decodeBody(body, &dto); err != nil {
		return nil, err
	}

	result := &evaluator.ResumeResult{
		Score:           clamp01(dto.Score),
		SkillCount:      dto.SkillCount,
		ExperienceYears: dto.ExperienceYears,
		Source:          evaluator.SourceRemote,
	}

	c.logger.Debug("resume analysis complete",
		zap.String(logutil.FieldSource, string(result.Source)),
		zap.Float64("score", result.Score),
		zap.Int("skill_count", result.SkillCount),
		zap.Float64("experience_years", result.ExperienceYears),
	)

	return result, nil
}

// SubmitVideo uploads an interview video for analysis and maps the response.
func (c *Client) SubmitVideo(ctx context.Context, handle evaluator.Handle) (*evaluator.VideoResult, error) {
	body, err := c.postMultipart(ctx, analyzeVideoPath, []filePart{
		{field: "file", handle: handle, defaultType: defaultVideoType},
	}, nil)
	if err != nil {
		return nil, err
	}

	if err := requireFields(body, "fluency.score", "vocabulary.score"); err != nil {
		return nil, err
	}

	var dto videoResponse
	if err := decodeBody(body, &dto); err != nil {
		return nil, err
	}

	result := &evaluator.VideoResult{
		FluencyScore:    clamp01(dto.Fluency.Score),
		VocabularyScore: clamp01(dto.Vocabulary.Score),
		Transcript:      dto.Transcription,
		Source:          evaluator.SourceRemote,
	}

	c.logger.Debug("video analysis complete",
		zap.String(logutil.FieldSource, string(result.Source)),
		zap.Float64("fluency_score", result.FluencyScore),
		zap.Float64("vocabulary_score", result.VocabularyScore),
		zap.String("transcript_preview", logutil.TruncateForLog(result.Transcript, transcriptLogLimit)),
	)

	return result, nil
}

// SubmitEvaluation uploads both inputs plus the CGPA for the final fusion.
func (c *Client) SubmitEvaluation(ctx context.Context, resume, video evaluator.Handle, cgpa float64) (*evaluator.FinalResult, error) {
	body, err := c.postMultipart(ctx, evaluatePath, []filePart{
		{field: "resume", handle: resume, defaultType: defaultResumeType},
		{field: "video", handle: video, defaultType: defaultVideoType},
	}, map[string]string{
		"cgpa": strconv.FormatFloat(cgpa, 'f', -1, 64),
	})
	if err != nil {
		return nil, err
	}

	if err := requireFields(body, "overall_score", "component_scores"); err != nil {
		return nil, err
	}

	var dto evaluateResponse
	if err := decodeBody(body, &dto); err != nil {
		return nil, err
	}

	result := &evaluator.FinalResult{
		OverallScore: clamp01(dto.OverallScore),
		ComponentScores: evaluator.ComponentScores{
			Resume:     clamp01(dto.ComponentScores.ResumeScore),
			Academic:   clamp01(dto.ComponentScores.AcademicScore),
			Fluency:    clamp01(dto.ComponentScores.FluencyScore),
			Vocabulary: clamp01(dto.ComponentScores.VocabularyScore),
		},
		Narrative: dto.Recommendation,
		Source:    evaluator.SourceRemote,
	}

	c.logger.Debug("candidate evaluation complete", zap.Float64("overall_score", result.OverallScore))

	return result, nil
}

// ResetEvaluation clears the server-side evaluation state. Best-effort; the
// acknowledgment body is ignored.
func (c *Client) ResetEvaluation(ctx context.Context) error {
	_, err := c.post(ctx, resetPath)

	return err
}
