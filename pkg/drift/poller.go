// Package drift watches a schema source and reports the first change to
// its content.
//
// A Poller fetches the source on a fixed interval. The first successful
// fetch records a baseline. The first later fetch whose content differs
// from the baseline is a drift: the poller disarms itself and then calls
// OnDrift exactly once. A poller is single use; the owner starts a fresh
// one for every serving generation.
package drift

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/pkg/source"
)

// MinInterval is the shortest accepted poll interval.
const MinInterval = time.Second

var (
	// ErrInvalidInterval is returned for a zero or negative interval.
	ErrInvalidInterval = errors.New("poll interval must be positive")

	// ErrIntervalTooShort is returned for an interval below MinInterval.
	ErrIntervalTooShort = fmt.Errorf("poll interval must be at least %s", MinInterval)
)

// FetchFunc retrieves the current artifact.
type FetchFunc func(ctx context.Context) (*source.Artifact, error)

// TickResult classifies the outcome of one tick.
type TickResult string

const (
	TickBaseline  TickResult = "baseline"
	TickUnchanged TickResult = "unchanged"
	TickDrift     TickResult = "drift"
	TickError     TickResult = "error"

	// TickDiscarded means the poller was stopped while the fetch was in
	// flight and the result was dropped.
	TickDiscarded TickResult = "discarded"
)

// Metrics receives tick outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveTick(result TickResult)
}

// Config configures a Poller.
type Config struct {
	Fetch    FetchFunc
	Interval time.Duration

	// OnDrift is called once, from the poller goroutine, after the poller
	// has disarmed. It may call Stop.
	OnDrift func()

	// Name labels log lines, e.g. "generation-3"
	Name string

	// Metrics is optional
	Metrics Metrics
}

// ticker is the part of time.Ticker the loop uses.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Poller is one armed drift watch.
//
// Thread safety: a single goroutine owns the ticker and runs every tick,
// so ticks never overlap. lastSeen and active are guarded by mu for
// readers on other goroutines.
type Poller struct {
	cfg       Config
	newTicker func(time.Duration) ticker

	mu       sync.Mutex
	lastSeen *source.Artifact
	active   bool
	started  bool

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{} // closed when the loop has exited
}

// New validates cfg and returns an unstarted poller.
func New(cfg Config) (*Poller, error) {
	switch {
	case cfg.Interval <= 0:
		return nil, ErrInvalidInterval
	case cfg.Interval < MinInterval:
		return nil, fmt.Errorf("%w, got %s", ErrIntervalTooShort, cfg.Interval)
	case cfg.Fetch == nil:
		return nil, errors.New("poller requires a fetch function")
	case cfg.OnDrift == nil:
		return nil, errors.New("poller requires an OnDrift callback")
	}
	if cfg.Name == "" {
		cfg.Name = "poller"
	}
	return &Poller{
		cfg:       cfg,
		newTicker: newRealTicker,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start is New followed by Poller.Start.
func Start(ctx context.Context, cfg Config) (*Poller, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	p.Start(ctx)
	return p, nil
}

// Start arms the poller. The first tick fires one interval from now.
// Starting twice, or after Stop, does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.active = true

	t := p.newTicker(p.cfg.Interval)
	go p.run(ctx, t)

	logger.Info("Schema poller started",
		logger.KeyPoller, p.cfg.Name, logger.Interval(p.cfg.Interval))
}

// Stop disarms the poller. Pending ticks are cancelled; a fetch already in
// flight completes and its result is discarded. Stop does not wait for
// that fetch; use Done. It is idempotent and safe to call from OnDrift.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.active = false
	if !p.started {
		// Never started: nothing will close done.
		p.started = true
		close(p.done)
	}
}

// LastSeen returns the baseline artifact, or nil before the first
// successful fetch. After a drift it still holds the pre-drift artifact.
func (p *Poller) LastSeen() *source.Artifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Active reports whether the poller is armed.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Done is closed once the poll loop has exited, before OnDrift runs.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Poller) run(ctx context.Context, t ticker) {
	drifted := false

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Schema poller stopping (context cancelled)", logger.KeyPoller, p.cfg.Name)
			break loop
		case <-p.stopCh:
			logger.Debug("Schema poller stopping (stop signal)", logger.KeyPoller, p.cfg.Name)
			break loop
		case <-t.C():
			if p.tick(ctx) {
				drifted = true
				break loop
			}
		}
	}

	t.Stop()
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
	close(p.done)

	if drifted && !p.stopped() {
		p.cfg.OnDrift()
	}
}

// tick runs one fetch and reports whether it found drift.
func (p *Poller) tick(ctx context.Context) bool {
	artifact, err := p.cfg.Fetch(ctx)
	if err == nil && artifact == nil {
		err = errors.New("fetch returned no artifact")
	}

	if p.stopped() {
		logger.Debug("Schema poller discarded in-flight fetch", logger.KeyPoller, p.cfg.Name)
		p.observe(TickDiscarded)
		return false
	}

	if err != nil {
		logger.Warn("Schema poll failed",
			logger.KeyPoller, p.cfg.Name, logger.Err(err))
		p.observe(TickError)
		return false
	}

	p.mu.Lock()
	prev := p.lastSeen
	var result TickResult
	switch {
	case prev == nil:
		p.lastSeen = artifact
		result = TickBaseline
	case source.SameContent(prev, artifact):
		p.lastSeen = artifact
		result = TickUnchanged
	default:
		p.active = false
		result = TickDrift
	}
	p.mu.Unlock()

	switch result {
	case TickBaseline:
		logger.Info("Schema baseline recorded",
			logger.KeyPoller, p.cfg.Name, logger.Source(artifact.Source), logger.Digest(artifact.Digest))
	case TickUnchanged:
		logger.Debug("Schema unchanged", logger.KeyPoller, p.cfg.Name, logger.Digest(artifact.Digest))
	case TickDrift:
		logger.Info("Schema drift detected",
			logger.KeyPoller, p.cfg.Name,
			logger.Source(artifact.Source),
			"previous_digest", shortDigest(prev.Digest),
			logger.Digest(artifact.Digest))
	}
	p.observe(result)
	return result == TickDrift
}

func (p *Poller) observe(result TickResult) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveTick(result)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
