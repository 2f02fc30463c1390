package evaluator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRemote struct {
	mu sync.Mutex

	resumeResult *ResumeResult
	resumeErr    error
	videoResult  *VideoResult
	videoErr     error
	finalResult  *FinalResult
	finalErr     error

	// Optional gates block the call until released, to control completion
	// ordering from the test.
	resumeGate chan struct{}
	videoGate  chan struct{}

	resumeCalls int
	videoCalls  int
	evalCalls   int
	resetCalls  int
}

func (f *fakeRemote) SubmitResume(_ context.Context, _ Handle) (*ResumeResult, error) {
	if f.resumeGate != nil {
		<-f.resumeGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	return f.resumeResult, f.resumeErr
}

func (f *fakeRemote) SubmitVideo(_ context.Context, _ Handle) (*VideoResult, error) {
	if f.videoGate != nil {
		<-f.videoGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls++
	return f.videoResult, f.videoErr
}

func (f *fakeRemote) SubmitEvaluation(_ context.Context, _, _ Handle, _ float64) (*FinalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalCalls++
	return f.finalResult, f.finalErr
}

func (f *fakeRemote) ResetEvaluation(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return nil
}

func (f *fakeRemote) counts() (resume, video, eval int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumeCalls, f.videoCalls, f.evalCalls
}

type stubAvailability struct {
	available atomic.Bool
	marked    atomic.Int64
}

func (s *stubAvailability) Available() bool { return s.available.Load() }
func (s *stubAvailability) MarkUnavailable() {
	s.available.Store(false)
	s.marked.Add(1)
}

func availableStub() *stubAvailability {
	s := &stubAvailability{}
	s.available.Store(true)
	return s
}

func remoteResults() *fakeRemote {
	return &fakeRemote{
		resumeResult: &ResumeResult{Score: 0.85, SkillCount: 12, ExperienceYears: 5, Source: SourceRemote},
		videoResult:  &VideoResult{FluencyScore: 0.8, VocabularyScore: 0.88, Transcript: "hello", Source: SourceRemote},
		finalResult:  &FinalResult{OverallScore: 0.86, Narrative: "Strong Recommendation: hire.", Source: SourceRemote},
	}
}

func waitForPhase(t *testing.T, c *Coordinator, phase Phase) State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := c.State()
		if state.Phase == phase && !state.Processing {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("coordinator did not reach phase %q, current state: %+v", phase, c.State())
	return State{}
}

func TestCoordinatorCompletesWithRemoteScores(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	coordinator := NewCoordinator(context.Background(), remote, availableStub(), NewFallback(1, nil), nil)

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "senior.pdf"}, 9.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}
	if err := coordinator.SubmitVideo(context.Background(), namedHandle{name: "senior.mp4"}); err != nil {
		t.Fatalf("submit video: %s", err)
	}

	state := waitForPhase(t, coordinator, PhaseComplete)

	if state.Final == nil || state.Final.Source != SourceRemote {
		t.Fatalf("expected remote final result, got %+v", state.Final)
	}
	if state.Resume == nil || state.Resume.Score != 0.85 {
		t.Fatalf("unexpected resume result: %+v", state.Resume)
	}
	if state.CGPA == nil || *state.CGPA != 9.0 {
		t.Fatalf("unexpected cgpa: %v", state.CGPA)
	}

	_, _, evals := remote.counts()
	if evals != 1 {
		t.Fatalf("expected exactly one evaluation call, got %d", evals)
	}
}

func TestCoordinatorCompletesInEitherSubmissionOrder(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	coordinator := NewCoordinator(context.Background(), remote, availableStub(), NewFallback(1, nil), nil)

	if err := coordinator.SubmitVideo(context.Background(), namedHandle{name: "a.mp4"}); err != nil {
		t.Fatalf("submit video: %s", err)
	}
	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "a.pdf"}, 7.5); err != nil {
		t.Fatalf("submit resume: %s", err)
	}

	state := waitForPhase(t, coordinator, PhaseComplete)

	if state.Final == nil {
		t.Fatalf("expected a final result")
	}

	_, _, evals := remote.counts()
	if evals != 1 {
		t.Fatalf("expected exactly one evaluation call, got %d", evals)
	}
}

func TestCoordinatorRejectsInvalidCGPA(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	coordinator := NewCoordinator(context.Background(), remote, availableStub(), NewFallback(1, nil), nil)

	err := coordinator.SubmitResume(context.Background(), namedHandle{name: "a.pdf"}, 11)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	state := coordinator.State()
	if state.LastError == "" {
		t.Fatalf("expected last error to be surfaced")
	}
	if state.Phase != PhaseIdle {
		t.Fatalf("expected phase to stay idle, got %q", state.Phase)
	}

	resumes, _, _ := remote.counts()
	if resumes != 0 {
		t.Fatalf("expected no remote calls, got %d", resumes)
	}
}

func TestCoordinatorFallsBackOnRemoteFailure(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	remote.resumeErr = errors.New("connection refused")
	remote.resumeResult = nil
	avail := availableStub()
	coordinator := NewCoordinator(context.Background(), remote, avail, NewFallback(1, nil), nil)

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "senior.pdf"}, 8.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}
	if err := coordinator.SubmitVideo(context.Background(), namedHandle{name: "senior.mp4"}); err != nil {
		t.Fatalf("submit video: %s", err)
	}

	state := waitForPhase(t, coordinator, PhaseComplete)

	if state.Resume == nil || state.Resume.Source != SourceFallback {
		t.Fatalf("expected fallback resume result, got %+v", state.Resume)
	}
	if state.Final == nil {
		t.Fatalf("expected a final result")
	}
	if avail.marked.Load() == 0 {
		t.Fatalf("expected availability latch after remote failure")
	}
	if state.LastError == "" {
		t.Fatalf("expected the remote failure to be surfaced")
	}
}

func TestCoordinatorSkipsRemoteFusionWhenBothOffline(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	avail := &stubAvailability{} // never available
	coordinator := NewCoordinator(context.Background(), remote, avail, NewFallback(1, nil), nil)

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "mid.pdf"}, 7.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}
	if err := coordinator.SubmitVideo(context.Background(), namedHandle{name: "mid.mp4"}); err != nil {
		t.Fatalf("submit video: %s", err)
	}

	state := waitForPhase(t, coordinator, PhaseComplete)

	if state.Final == nil || state.Final.Source != SourceFallback {
		t.Fatalf("expected fallback final result, got %+v", state.Final)
	}

	resumes, videos, evals := remote.counts()
	if resumes != 0 || videos != 0 || evals != 0 {
		t.Fatalf("expected no remote calls, got %d/%d/%d", resumes, videos, evals)
	}
}

func TestCoordinatorResetDiscardsInFlightCompletions(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	remote.resumeGate = make(chan struct{})
	coordinator := NewCoordinator(context.Background(), remote, availableStub(), NewFallback(1, nil), nil)

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "a.pdf"}, 8.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}

	before := coordinator.State()
	coordinator.Reset()
	close(remote.resumeGate)

	// Give the stale completion time to arrive and be discarded.
	time.Sleep(50 * time.Millisecond)

	state := coordinator.State()
	if state.Round == before.Round {
		t.Fatalf("expected a new round id after reset")
	}
	if state.Phase != PhaseIdle {
		t.Fatalf("expected idle phase after reset, got %q", state.Phase)
	}
	if state.Resume != nil || state.CGPA != nil {
		t.Fatalf("expected cleared state after reset, got %+v", state)
	}
	if state.Processing {
		t.Fatalf("expected no processing after reset")
	}
}

func TestCoordinatorFileResolutionFailureIsTerminal(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	remote.resumeErr = ErrFileResolution
	remote.resumeResult = nil
	avail := availableStub()
	coordinator := NewCoordinator(context.Background(), remote, avail, NewFallback(1, nil), nil)

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "missing.pdf"}, 8.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state := coordinator.State(); !state.Processing {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	state := coordinator.State()
	if state.Resume != nil {
		t.Fatalf("expected no substituted resume result, got %+v", state.Resume)
	}
	if state.LastError == "" {
		t.Fatalf("expected the file failure to be surfaced")
	}
	if !avail.Available() {
		t.Fatalf("file failures must not latch the server unavailable")
	}
}

func TestCoordinatorClearLastError(t *testing.T) {
	t.Parallel()

	coordinator := NewCoordinator(context.Background(), remoteResults(), availableStub(), NewFallback(1, nil), nil)

	_ = coordinator.SubmitResume(context.Background(), nil, 5)
	if coordinator.State().LastError == "" {
		t.Fatalf("expected an error to surface")
	}

	coordinator.ClearLastError()
	if got := coordinator.State().LastError; got != "" {
		t.Fatalf("expected cleared error, got %q", got)
	}
}

func TestCoordinatorSubscribePublishesSnapshots(t *testing.T) {
	t.Parallel()

	coordinator := NewCoordinator(context.Background(), remoteResults(), availableStub(), NewFallback(1, nil), nil)

	states, cancel := coordinator.Subscribe()

	if err := coordinator.SubmitResume(context.Background(), namedHandle{name: "a.pdf"}, 8.0); err != nil {
		t.Fatalf("submit resume: %s", err)
	}

	select {
	case state, ok := <-states:
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		if state.Phase != PhaseAwaitingInputs {
			t.Fatalf("expected awaiting_inputs snapshot, got %q", state.Phase)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot published")
	}

	cancel()
	if _, ok := <-states; ok {
		// Drain until closed; buffered snapshots may still be pending.
		for range states {
		}
	}
}

func TestCoordinatorResetNotifiesRemote(t *testing.T) {
	t.Parallel()

	remote := remoteResults()
	coordinator := NewCoordinator(context.Background(), remote, availableStub(), NewFallback(1, nil), nil)

	coordinator.Reset()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		remote.mu.Lock()
		calls := remote.resetCalls
		remote.mu.Unlock()
		if calls == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("expected a remote reset call")
}
