package mlserver

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	logutil "github.com/hirescope/hirescope/internal/logger"
)

const (
	healthPath = "/health"
	// Health checks must be cheap; the probe never waits longer than this.
	maxProbeTimeout = 5 * time.Second
)

// Probe answers "should the remote path be attempted right now" cheaply. The
// flag starts unavailable and stays so until the first successful health
// check (default-to-offline bias). Reads are lock-free; a stale read is
// harmless, a blocked caller is not.
type Probe struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	available   atomic.Bool
	lastChecked atomic.Int64 // unix nanoseconds, 0 before the first check
}

// NewProbe creates a probe against the server's health endpoint. Timeouts
// above the 5s ceiling are clamped down.
func NewProbe(baseURL string, timeout time.Duration, logger *zap.Logger) *Probe {
	if timeout <= 0 || timeout > maxProbeTimeout {
		timeout = maxProbeTimeout
	}
	logger = logutil.WithFields(logger, logutil.EvaluationFields("", baseURL)...)

	return &Probe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Check performs a blocking health check and stores the outcome. Any 2xx
// counts as available; everything else, including transport failures, counts
// as unavailable.
func (p *Probe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthPath, nil)
	if err != nil {
		p.store(false)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("health check failed", zap.Error(err))
		p.store(false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	p.logger.Debug("health check",
		zap.Int("status", resp.StatusCode),
		zap.Bool("available", ok),
	)
	p.store(ok)

	return ok
}

// Refresh initiates a health check without blocking the caller; the result is
// consumed via Available, not a return value.
func (p *Probe) Refresh(ctx context.Context) {
	go p.Check(ctx)
}

// MarkUnavailable latches the flag to unavailable immediately, with no
// debounce. Callers use it the moment they observe a transport failure so
// later submissions stop wasting time on a dead server.
func (p *Probe) MarkUnavailable() {
	p.store(false)
}

// Available reports the last stored availability.
func (p *Probe) Available() bool {
	return p.available.Load()
}

// LastChecked reports when the flag was last written, zero before any check.
func (p *Probe) LastChecked() time.Time {
	nanos := p.lastChecked.Load()
	if nanos == 0 {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}

func (p *Probe) store(ok bool) {
	p.available.Store(ok)
	p.lastChecked.Store(time.Now().UnixNano())
}
