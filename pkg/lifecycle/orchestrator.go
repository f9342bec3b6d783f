package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/internal/telemetry"
	"github.com/marmos91/hotschema/pkg/drift"
)

// restartErrBuffer is how many failed soft restarts are kept for
// RestartErrors readers; older ones are dropped.
const restartErrBuffer = 8

// Orchestrator owns the serving generations.
//
// Thread safety: every generation field and the orchestrator state are
// guarded by mu. Boot and drain steps run without the lock; a generation
// becomes visible as live only through the swap under the lock.
type Orchestrator struct {
	deps Deps
	opts Options

	startPoller func(ctx context.Context, cfg drift.Config) (poller, error)
	now         func() time.Time

	// runCtx scopes pollers and background restarts; cancelled by Stop.
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu         sync.Mutex
	live       *Generation
	draining   map[uint64]*Generation
	nextID     uint64
	connOwners map[string]uint64 // live, booting and draining generations
	retired    string            // connection of the last closed generation
	started    bool
	stopped    bool
	restarting bool

	background  sync.WaitGroup
	restartErrs chan error
	done        chan struct{}
	doneOnce    sync.Once
}

// New validates deps and opts.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle dependencies: %w", err)
	}
	switch {
	case opts.PollInterval <= 0:
		return nil, drift.ErrInvalidInterval
	case opts.PollInterval < drift.MinInterval:
		return nil, fmt.Errorf("%w, got %s", drift.ErrIntervalTooShort, opts.PollInterval)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:        deps,
		opts:        opts,
		startPoller: startDriftPoller,
		now:         time.Now,
		runCtx:      runCtx,
		cancelRun:   cancel,
		draining:    make(map[uint64]*Generation),
		connOwners:  make(map[string]uint64),
		restartErrs: make(chan error, restartErrBuffer),
		done:        make(chan struct{}),
	}, nil
}

// Start boots the first generation and arms its poller. ctx bounds the
// boot only; Stop also cancels it. A boot failure is returned as
// *BootError and leaves the orchestrator stopped.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.stopped:
		o.mu.Unlock()
		return ErrStopped
	case o.started:
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.background.Add(1)
	o.mu.Unlock()
	defer o.background.Done()

	bootCtx, cancel := o.bind(ctx)
	defer cancel()

	g, err := o.boot(bootCtx)
	if err != nil {
		o.mu.Lock()
		raced := o.stopped
		o.stopped = true
		o.mu.Unlock()
		if raced {
			// Stop owns the shutdown and closes Done once we return.
			return errors.Join(ErrStopped, err)
		}
		o.cancelRun()
		o.finish()
		return err
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return errors.Join(ErrStopped, o.drain(context.WithoutCancel(ctx), g))
	}
	o.promote(g)
	o.mu.Unlock()
	return nil
}

// bind derives a context that is also cancelled by Stop.
func (o *Orchestrator) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unbind := context.AfterFunc(o.runCtx, cancel)
	return ctx, func() {
		unbind()
		cancel()
	}
}

// Run starts the orchestrator, serves until ctx is done, then performs a
// hard stop bounded by ShutdownTimeout.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("Shutdown requested", "reason", ctx.Err())

	stopCtx, cancel := context.WithTimeout(context.Background(), o.opts.ShutdownTimeout)
	defer cancel()
	return o.Stop(stopCtx)
}

// RequestRestart asks for a soft restart in the background. It returns
// false when the request was coalesced into a restart already in flight,
// or when the orchestrator is not serving.
func (o *Orchestrator) RequestRestart() bool {
	o.mu.Lock()
	if !o.started || o.stopped || o.live == nil {
		o.mu.Unlock()
		return false
	}
	if o.restarting {
		o.mu.Unlock()
		o.observeRestart(RestartSoft, OutcomeCoalesced)
		logger.Debug("Restart request coalesced")
		return false
	}
	o.restarting = true
	o.background.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.background.Done()
		_ = o.restart(o.runCtx)
	}()
	return true
}

// Restart performs a soft restart and waits for it. A failure leaves the
// current generation live.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.stopped:
		o.mu.Unlock()
		return ErrStopped
	case !o.started || o.live == nil:
		o.mu.Unlock()
		return ErrNotStarted
	case o.restarting:
		o.mu.Unlock()
		o.observeRestart(RestartSoft, OutcomeCoalesced)
		return ErrRestartInProgress
	}
	o.restarting = true
	o.background.Add(1)
	o.mu.Unlock()

	defer o.background.Done()

	ctx, cancel := o.bind(ctx)
	defer cancel()
	return o.restart(ctx)
}

// restart runs with o.restarting set and clears it on return.
func (o *Orchestrator) restart(ctx context.Context) error {
	defer func() {
		o.mu.Lock()
		o.restarting = false
		o.mu.Unlock()
	}()

	o.mu.Lock()
	old := o.live
	if old == nil || o.stopped {
		o.mu.Unlock()
		return ErrStopped
	}
	if old.poller != nil {
		old.poller.Stop()
	}
	o.mu.Unlock()

	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanRestart, old.ID,
		telemetry.RestartKind(RestartSoft))
	defer span.End()

	logger.InfoCtx(ctx, "Soft restart started", logger.Generation(old.ID))

	next, err := o.boot(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.observeRestart(RestartSoft, OutcomeFailure)
		logger.ErrorCtx(ctx, "Soft restart failed, previous generation keeps serving",
			logger.Generation(old.ID), logger.Err(err))
		o.reportRestartError(err)

		o.mu.Lock()
		if !o.stopped && o.live == old {
			o.armPoller(old)
		}
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return errors.Join(ErrStopped, o.drain(context.WithoutCancel(ctx), next))
	}
	old.state = StateDraining
	o.draining[old.ID] = old
	o.promote(next)
	o.background.Add(1)
	o.mu.Unlock()

	o.observeRestart(RestartSoft, OutcomeSuccess)
	logger.InfoCtx(ctx, "Soft restart complete",
		logger.Generation(next.ID), "previous_generation", old.ID)

	go func() {
		defer o.background.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), o.opts.ShutdownTimeout)
		defer cancel()
		if err := o.drain(drainCtx, old); err != nil {
			logger.Warn("Replaced generation drained with errors",
				logger.Generation(old.ID), logger.Err(err))
		}
	}()
	return nil
}

// Stop drains every generation and starts no successor. It waits for
// background drains and restarts, bounded by ctx. Later calls wait for the
// first to finish and return nil.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		select {
		case <-o.done:
		case <-ctx.Done():
		}
		return nil
	}
	o.stopped = true
	live := o.live
	o.live = nil
	if live != nil {
		live.state = StateDraining
		o.draining[live.ID] = live
	}
	o.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRestart)
	span.SetAttributes(telemetry.RestartKind(RestartHard))
	defer span.End()

	logger.InfoCtx(ctx, "Stopping all generations")
	o.cancelRun()
	o.setLiveGeneration(0)

	var err error
	if live != nil {
		err = o.drain(ctx, live)
	}

	waited := make(chan struct{})
	go func() {
		o.background.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("waiting for background drains: %w", ctx.Err()))
	}

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
		telemetry.RecordError(ctx, err)
	}
	o.observeRestart(RestartHard, outcome)
	o.finish()
	logger.InfoCtx(ctx, "All generations stopped")
	return err
}

func (o *Orchestrator) finish() {
	o.doneOnce.Do(func() { close(o.done) })
}

// Current returns the live generation, or nil.
func (o *Orchestrator) Current() *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live == nil {
		return nil
	}
	s := o.live.snapshot()
	return &s
}

// Generations returns the live and draining generations, oldest first.
func (o *Orchestrator) Generations() []Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Snapshot, 0, len(o.draining)+1)
	for _, g := range o.draining {
		out = append(out, g.snapshot())
	}
	if o.live != nil {
		out = append(out, o.live.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Done is closed when the orchestrator has stopped.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// RestartErrors delivers failed soft restarts.
func (o *Orchestrator) RestartErrors() <-chan error {
	return o.restartErrs
}

func (o *Orchestrator) reportRestartError(err error) {
	select {
	case o.restartErrs <- err:
	default:
		logger.Debug("Restart error dropped, no reader", logger.Err(err))
	}
}

// boot runs fetch, build, connect and listen for a new generation. On
// failure the completed steps are rolled back in reverse.
func (o *Orchestrator) boot(ctx context.Context) (*Generation, error) {
	o.mu.Lock()
	o.nextID++
	g := &Generation{
		ID:        o.nextID,
		UUID:      uuid.NewString(),
		state:     StateBooting,
		startedAt: o.now(),
	}
	o.mu.Unlock()

	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanBoot, g.ID, telemetry.GenerationID(g.UUID))
	defer span.End()
	ctx = logger.WithContext(ctx, logger.NewLogContext("", "", g.ID))

	logger.InfoCtx(ctx, "Booting generation", logger.Source(o.deps.Fetcher.Describe()))
	start := o.now()

	fail := func(step string, err error) (*Generation, error) {
		o.rollback(context.WithoutCancel(ctx), g)
		o.mu.Lock()
		g.state = StateFailed
		g.closedAt = o.now()
		o.mu.Unlock()

		bootErr := &BootError{Generation: g.ID, Step: step, Err: err}
		telemetry.SetAttributes(ctx, telemetry.Step(step))
		telemetry.RecordError(ctx, bootErr)
		logger.ErrorCtx(ctx, "Generation boot failed", logger.Step(step), logger.Err(err))
		o.observeBoot(o.now().Sub(start), step)
		return nil, bootErr
	}

	telemetry.AddEvent(ctx, StepFetch)
	artifact, err := o.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return fail(StepFetch, err)
	}
	o.mu.Lock()
	g.artifact = artifact
	o.mu.Unlock()

	telemetry.AddEvent(ctx, StepBuild)
	s, err := o.deps.Builder.Build(artifact)
	if err != nil {
		return fail(StepBuild, err)
	}
	o.mu.Lock()
	g.schema = s
	o.mu.Unlock()

	telemetry.AddEvent(ctx, StepConnect)
	conn, err := o.deps.Connections.Open(ctx)
	if err != nil {
		return fail(StepConnect, err)
	}
	if err := o.claim(g, conn); err != nil {
		return fail(StepConnect, err)
	}

	telemetry.AddEvent(ctx, StepListen)
	lst, err := o.deps.Servers.Start(WithGeneration(ctx, g.ID), s, conn)
	if err != nil {
		return fail(StepListen, err)
	}
	o.mu.Lock()
	g.listener = lst
	o.mu.Unlock()

	o.observeBoot(o.now().Sub(start), "")
	logger.InfoCtx(ctx, "Generation booted",
		logger.Digest(artifact.Digest), logger.ConnectionID(conn.ID()), logger.Addr(lst.Addr()),
		logger.DurationMs(o.now().Sub(start)))
	return g, nil
}

// claim records conn as owned by g. A connection held by another
// generation, or closed by the one before, is refused and left untouched.
func (o *Orchestrator) claim(g *Generation, conn Connection) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if owner, ok := o.connOwners[conn.ID()]; ok {
		return fmt.Errorf("%w: %s belongs to generation %d", ErrConnectionReused, conn.ID(), owner)
	}
	if conn.ID() == o.retired {
		return fmt.Errorf("%w: %s was already closed", ErrConnectionReused, conn.ID())
	}
	o.connOwners[conn.ID()] = g.ID
	g.conn = conn
	return nil
}

// rollback undoes the completed boot steps of g in reverse.
func (o *Orchestrator) rollback(ctx context.Context, g *Generation) {
	o.mu.Lock()
	lst, conn := g.listener, g.conn
	if conn != nil {
		o.release(conn.ID(), g.ID)
	}
	o.mu.Unlock()

	if lst != nil {
		if err := lst.Stop(ctx); err != nil {
			logger.WarnCtx(ctx, "Rollback: listener stop failed", logger.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(ctx); err != nil {
			logger.WarnCtx(ctx, "Rollback: connection close failed", logger.Err(err))
		}
	}
}

// release drops id's ownership record if gen still holds it. Called
// with mu held.
func (o *Orchestrator) release(id string, gen uint64) {
	if o.connOwners[id] == gen {
		delete(o.connOwners, id)
	}
}

// promote makes g live and arms its poller. Called with mu held.
func (o *Orchestrator) promote(g *Generation) {
	g.state = StateLive
	g.liveAt = o.now()
	o.live = g
	o.armPoller(g)
	o.setLiveGeneration(g.ID)
	logger.Info("Generation live", logger.Generation(g.ID), logger.State(g.state.String()))
}

// armPoller starts a fresh poller for g. Called with mu held.
func (o *Orchestrator) armPoller(g *Generation) {
	var pm drift.Metrics
	if o.deps.Metrics != nil {
		pm = o.deps.Metrics
	}
	p, err := o.startPoller(o.runCtx, drift.Config{
		Fetch:    o.deps.Fetcher.Fetch,
		Interval: o.opts.PollInterval,
		OnDrift:  func() { o.onDrift(g) },
		Name:     fmt.Sprintf("generation-%d", g.ID),
		Metrics:  pm,
	})
	if err != nil {
		logger.Error("Failed to arm schema poller", logger.Generation(g.ID), logger.Err(err))
		return
	}
	g.poller = p
}

func (o *Orchestrator) onDrift(g *Generation) {
	o.mu.Lock()
	current := o.live == g
	o.mu.Unlock()
	if !current {
		return
	}
	logger.Info("Drift detected, requesting restart", logger.Generation(g.ID))
	o.RequestRestart()
}

// drain stops g's poller, then its listener, then its connection. Each
// step runs even when an earlier one failed.
func (o *Orchestrator) drain(ctx context.Context, g *Generation) error {
	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanDrain, g.ID)
	defer span.End()

	o.mu.Lock()
	g.state = StateDraining
	p, lst, conn := g.poller, g.listener, g.conn
	o.mu.Unlock()

	logger.InfoCtx(ctx, "Draining generation", logger.Generation(g.ID))

	if p != nil {
		p.Stop()
	}

	var errs []error
	if lst != nil {
		if err := lst.Stop(ctx); err != nil {
			logger.WarnCtx(ctx, "Listener stop failed", logger.Generation(g.ID), logger.Err(err))
			errs = append(errs, fmt.Errorf("stop listener: %w", err))
		}
	}
	if conn != nil {
		if err := conn.Close(ctx); err != nil {
			logger.WarnCtx(ctx, "Connection close failed", logger.Generation(g.ID),
				logger.ConnectionID(conn.ID()), logger.Err(err))
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	o.mu.Lock()
	g.state = StateClosed
	g.closedAt = o.now()
	delete(o.draining, g.ID)
	if conn != nil {
		o.release(conn.ID(), g.ID)
		o.retired = conn.ID()
	}
	o.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	logger.InfoCtx(ctx, "Generation closed", logger.Generation(g.ID))
	return err
}

func (o *Orchestrator) observeBoot(d time.Duration, step string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveBoot(d, step)
	}
}

func (o *Orchestrator) observeRestart(kind, outcome string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveRestart(kind, outcome)
	}
}

func (o *Orchestrator) setLiveGeneration(id uint64) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.SetLiveGeneration(id)
	}
}
