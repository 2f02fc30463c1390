package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase is the coordinator's position in one evaluation round.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingInputs Phase = "awaiting_inputs"
	PhaseFusing         Phase = "fusing"
	PhaseComplete       Phase = "complete"
)

// RemoteScorer is the remote scoring service surface consumed by the
// coordinator. Implemented by mlserver.Client.
type RemoteScorer interface {
	SubmitResume(ctx context.Context, handle Handle) (*ResumeResult, error)
	SubmitVideo(ctx context.Context, handle Handle) (*VideoResult, error)
	SubmitEvaluation(ctx context.Context, resume, video Handle, cgpa float64) (*FinalResult, error)
	ResetEvaluation(ctx context.Context) error
}

// Availability is the process-wide server-availability latch shared across
// concurrent submissions. Implemented by mlserver.Probe.
type Availability interface {
	Available() bool
	MarkUnavailable()
}

// State is an immutable snapshot of one evaluation round. Result pointers are
// shared across snapshots and must not be mutated by consumers.
type State struct {
	Round      string
	Phase      Phase
	Resume     *ResumeResult
	Video      *VideoResult
	CGPA       *float64
	Processing bool
	LastError  string
	Final      *FinalResult
}

// subscriberBuffer bounds the per-subscriber queue; a subscriber that falls
// behind loses intermediate snapshots, never the coordinator's progress.
const subscriberBuffer = 16

// Coordinator owns per-candidate evaluation state, routes each sub-task to
// the remote scorer or the fallback based on availability, detects when all
// inputs are ready and publishes a single reconciled result.
//
// All state mutation happens through task-completion callbacks serialized by
// one mutex; completions from a round that has been reset are discarded via a
// generation counter.
type Coordinator struct {
	ctx      context.Context
	remote   RemoteScorer
	avail    Availability
	fallback *Fallback
	logger   *zap.Logger

	mu           sync.Mutex
	gen          uint64
	round        uuid.UUID
	phase        Phase
	resume       *ResumeResult
	video        *VideoResult
	cgpa         *float64
	final        *FinalResult
	lastError    string
	inflight     int
	resumeHandle Handle
	videoHandle  Handle

	subs    map[int]chan State
	nextSub int
}

// NewCoordinator creates a coordinator for one evaluation session. The
// context is used for requests the coordinator initiates itself (fusion and
// remote resets).
func NewCoordinator(ctx context.Context, remote RemoteScorer, avail Availability, fallback *Fallback, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		ctx:      ctx,
		remote:   remote,
		avail:    avail,
		fallback: fallback,
		logger:   logger,
		round:    uuid.New(),
		phase:    PhaseIdle,
		subs:     make(map[int]chan State),
	}
}

// SubmitResume records the CGPA and schedules resume scoring. The CGPA must
// be on the 10-point scale; anything else is rejected before scoring starts.
func (c *Coordinator) SubmitResume(ctx context.Context, handle Handle, cgpa float64) error {
	if handle == nil {
		return c.rejectInput(fmt.Errorf("%w: resume handle is required", ErrInvalidInput))
	}
	if cgpa < 0 || cgpa > 10 {
		return c.rejectInput(fmt.Errorf("%w: cgpa %.2f is outside [0, 10]", ErrInvalidInput, cgpa))
	}

	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.phase = PhaseAwaitingInputs
	}
	value := cgpa
	c.cgpa = &value
	c.resumeHandle = handle
	c.inflight++
	gen := c.gen
	c.publishLocked()
	c.mu.Unlock()

	go c.scoreResume(ctx, gen, handle)

	return nil
}

// SubmitVideo schedules video scoring. Resume and video submissions are
// independent and may complete in either order.
func (c *Coordinator) SubmitVideo(ctx context.Context, handle Handle) error {
	if handle == nil {
		return c.rejectInput(fmt.Errorf("%w: video handle is required", ErrInvalidInput))
	}

	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.phase = PhaseAwaitingInputs
	}
	c.videoHandle = handle
	c.inflight++
	gen := c.gen
	c.publishLocked()
	c.mu.Unlock()

	go c.scoreVideo(ctx, gen, handle)

	return nil
}

// Reset discards all round state atomically. In-flight completions from the
// old round are detected via the generation counter and dropped. The remote
// evaluation state is reset best-effort when the server is available.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.gen++
	c.round = uuid.New()
	c.phase = PhaseIdle
	c.resume = nil
	c.video = nil
	c.cgpa = nil
	c.final = nil
	c.resumeHandle = nil
	c.videoHandle = nil
	c.lastError = ""
	c.inflight = 0
	resetRemote := c.avail.Available()
	round := c.round
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("evaluation state reset", zap.String("round", round.String()))

	if resetRemote {
		go func() {
			if err := c.remote.ResetEvaluation(c.ctx); err != nil {
				c.logger.Debug("remote evaluation reset failed", zap.Error(err))
			}
		}()
	}
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// ClearLastError clears the surfaced error. Errors are cleared by the caller
// after observation, never automatically.
func (c *Coordinator) ClearLastError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastError == "" {
		return
	}
	c.lastError = ""
	c.publishLocked()
}

// Subscribe registers for state snapshots pushed on every mutation. Sends
// never block the coordinator; slow subscribers lose intermediate snapshots.
// The returned function cancels the subscription.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, subscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Coordinator) scoreResume(ctx context.Context, gen uint64, handle Handle) {
	var (
		result  *ResumeResult
		failure string
	)

	if c.avail.Available() {
		remote, err := c.remote.SubmitResume(ctx, handle)
		switch {
		case err == nil:
			result = remote
		case errors.Is(err, ErrFileResolution):
			c.failTask(gen, fmt.Sprintf("resume processing error: %s", err))
			return
		default:
			failure = fmt.Sprintf("resume processing error: %s", err)
			c.avail.MarkUnavailable()
			c.logger.Warn("remote resume scoring failed, using offline analysis", zap.Error(err))
		}
	}

	if result == nil {
		result = c.fallback.ScoreResume(handle)
	}

	c.completeTask(gen, func() {
		c.resume = result
		if failure != "" {
			c.lastError = failure
		}
	})
}

func (c *Coordinator) scoreVideo(ctx context.Context, gen uint64, handle Handle) {
	var (
		result  *VideoResult
		failure string
	)

	if c.avail.Available() {
		remote, err := c.remote.SubmitVideo(ctx, handle)
		switch {
		case err == nil:
			result = remote
		case errors.Is(err, ErrFileResolution):
			c.failTask(gen, fmt.Sprintf("video processing error: %s", err))
			return
		default:
			failure = fmt.Sprintf("video processing error: %s", err)
			c.avail.MarkUnavailable()
			c.logger.Warn("remote video scoring failed, using offline analysis", zap.Error(err))
		}
	}

	if result == nil {
		result = c.fallback.ScoreVideo(handle)
	}

	c.completeTask(gen, func() {
		c.video = result
		if failure != "" {
			c.lastError = failure
		}
	})
}

func (c *Coordinator) fuse(gen uint64, resume *ResumeResult, video *VideoResult, cgpa float64, resumeHandle, videoHandle Handle) {
	var (
		final   *FinalResult
		failure string
	)

	// Once both sub-results already came from the offline path there is no
	// point in another remote round trip.
	bothFallback := resume.Source == SourceFallback && video.Source == SourceFallback

	if c.avail.Available() && !bothFallback {
		remote, err := c.remote.SubmitEvaluation(c.ctx, resumeHandle, videoHandle, cgpa)
		if err == nil {
			final = remote
		} else {
			failure = fmt.Sprintf("evaluation error: %s", err)
			c.avail.MarkUnavailable()
			c.logger.Warn("remote evaluation failed, fusing offline", zap.Error(err))
		}
	}

	if final == nil {
		final = c.fallback.ScoreFinal(resume, video, NormalizeCGPA(cgpa))
	}

	c.completeTask(gen, func() {
		c.final = final
		c.phase = PhaseComplete
		if failure != "" {
			c.lastError = failure
		}
	})
}

// completeTask applies a task outcome under the lock, discarding completions
// that belong to a round that has since been reset.
func (c *Coordinator) completeTask(gen uint64, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("discarding completion from a previous round",
			zap.Uint64("completion_generation", gen),
			zap.Uint64("current_generation", c.gen),
		)
		return
	}

	apply()
	c.inflight--
	c.checkCompletionLocked()
	c.publishLocked()
}

// failTask records a terminal submission failure without storing a result.
func (c *Coordinator) failTask(gen uint64, message string) {
	c.logger.Error("submission failed", zap.String("reason", message))
	c.completeTask(gen, func() {
		c.lastError = message
	})
}

// checkCompletionLocked fires fusion when all inputs are present. Safe to
// invoke redundantly after every completion: the AwaitingInputs guard makes
// the transition fire at most once per round.
func (c *Coordinator) checkCompletionLocked() {
	if c.phase != PhaseAwaitingInputs {
		return
	}
	if c.resume == nil || c.video == nil || c.cgpa == nil {
		return
	}

	c.phase = PhaseFusing
	c.inflight++

	gen := c.gen
	resume, video := c.resume, c.video
	cgpa := *c.cgpa
	resumeHandle, videoHandle := c.resumeHandle, c.videoHandle

	c.logger.Info("all inputs ready, fusing scores",
		zap.String("round", c.round.String()),
		zap.String("resume_source", string(resume.Source)),
		zap.String("video_source", string(video.Source)),
	)

	go c.fuse(gen, resume, video, cgpa, resumeHandle, videoHandle)
}

func (c *Coordinator) rejectInput(err error) error {
	c.mu.Lock()
	c.lastError = err.Error()
	c.publishLocked()
	c.mu.Unlock()

	return err
}

func (c *Coordinator) snapshotLocked() State {
	state := State{
		Round:      c.round.String(),
		Phase:      c.phase,
		Resume:     c.resume,
		Video:      c.video,
		Processing: c.inflight > 0,
		LastError:  c.lastError,
		Final:      c.final,
	}
	if c.cgpa != nil {
		value := *c.cgpa
		state.CGPA = &value
	}

	return state
}

func (c *Coordinator) publishLocked() {
	state := c.snapshotLocked()
	for _, sub := range c.subs {
		select {
		case sub <- state:
		default: // subscriber fell behind
		}
	}
}
