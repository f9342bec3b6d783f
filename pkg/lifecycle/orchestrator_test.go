package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/hotschema/pkg/drift"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout = 2 * time.Second
	pollEvery   = 5 * time.Millisecond
)

// ============================================================================
// Fakes
// ============================================================================

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.list() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeFetcher struct {
	log   *eventLog
	calls atomic.Int32
	fn    func(ctx context.Context, call int) (*source.Artifact, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*source.Artifact, error) {
	call := int(f.calls.Add(1))
	f.log.add("fetch")
	if f.fn != nil {
		return f.fn(ctx, call)
	}
	return source.NewArtifact("type Query { hello: String }", "fake", time.Now()), nil
}

func (f *fakeFetcher) Describe() string { return "fake" }

type fakeBuilder struct {
	log   *eventLog
	calls atomic.Int32
	fail  func(call int) error
}

func (b *fakeBuilder) Build(a *source.Artifact) (*schema.Schema, error) {
	call := int(b.calls.Add(1))
	b.log.add("build")
	if b.fail != nil {
		if err := b.fail(call); err != nil {
			return nil, err
		}
	}
	return &schema.Schema{Artifact: a, BuiltAt: time.Now()}, nil
}

type fakeConn struct {
	id       string
	log      *eventLog
	closeErr error
	closes   atomic.Int32
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Close(context.Context) error {
	c.closes.Add(1)
	c.log.add("close %s", c.id)
	return c.closeErr
}

type fakeConnFactory struct {
	log      *eventLog
	closeErr error
	fail     func(call int) error

	// reuse hands out the first connection again on every later call
	reuse bool

	mu    sync.Mutex
	calls int
	conns []*fakeConn
}

func (f *fakeConnFactory) Open(context.Context) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		if err := f.fail(f.calls); err != nil {
			return nil, err
		}
	}
	if f.reuse && len(f.conns) > 0 {
		f.log.add("open %s", f.conns[0].id)
		return f.conns[0], nil
	}
	c := &fakeConn{id: fmt.Sprintf("conn-%d", len(f.conns)+1), log: f.log, closeErr: f.closeErr}
	f.conns = append(f.conns, c)
	f.log.add("open %s", c.id)
	return c, nil
}

func (f *fakeConnFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeConnFactory) get(t *testing.T, i int) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.conns), i)
	return f.conns[i]
}

type fakeListener struct {
	name    string
	log     *eventLog
	stopErr error
	stops   atomic.Int32
}

func (l *fakeListener) Stop(context.Context) error {
	l.stops.Add(1)
	l.log.add("stop %s", l.name)
	return l.stopErr
}

func (l *fakeListener) Addr() string { return l.name }

type fakeServers struct {
	log     *eventLog
	stopErr error
	fail    func(call int) error

	mu        sync.Mutex
	calls     int
	listeners []*fakeListener
}

func (s *fakeServers) Start(ctx context.Context, _ *schema.Schema, conn Connection) (Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	gen, ok := GenerationFromContext(ctx)
	if !ok {
		return nil, errors.New("no generation in context")
	}
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return nil, err
		}
	}
	l := &fakeListener{name: fmt.Sprintf("gen-%d", gen), log: s.log, stopErr: s.stopErr}
	s.listeners = append(s.listeners, l)
	s.log.add("listen %s", l.name)
	return l, nil
}

type fakePoller struct {
	cfg   drift.Config
	stops atomic.Int32
}

func (p *fakePoller) Stop()        { p.stops.Add(1) }
func (p *fakePoller) Active() bool { return p.stops.Load() == 0 }

type pollerSet struct {
	mu      sync.Mutex
	pollers []*fakePoller
}

func (s *pollerSet) start(_ context.Context, cfg drift.Config) (poller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakePoller{cfg: cfg}
	s.pollers = append(s.pollers, p)
	return p, nil
}

func (s *pollerSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pollers)
}

func (s *pollerSet) get(t *testing.T, i int) *fakePoller {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Greater(t, len(s.pollers), i)
	return s.pollers[i]
}

type fakeMetrics struct {
	mu       sync.Mutex
	boots    []string
	restarts []string
	live     []uint64
}

func (m *fakeMetrics) ObserveTick(drift.TickResult) {}

func (m *fakeMetrics) ObserveBoot(_ time.Duration, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boots = append(m.boots, step)
}

func (m *fakeMetrics) ObserveRestart(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts = append(m.restarts, kind+"/"+outcome)
}

func (m *fakeMetrics) SetLiveGeneration(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = append(m.live, id)
}

func (m *fakeMetrics) restartCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.restarts {
		if r == key {
			n++
		}
	}
	return n
}

func (m *fakeMetrics) liveIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.live...)
}

type env struct {
	log     *eventLog
	fetcher *fakeFetcher
	builder *fakeBuilder
	conns   *fakeConnFactory
	servers *fakeServers
	pollers *pollerSet
	metrics *fakeMetrics
}

func newEnv() *env {
	log := &eventLog{}
	return &env{
		log:     log,
		fetcher: &fakeFetcher{log: log},
		builder: &fakeBuilder{log: log},
		conns:   &fakeConnFactory{log: log},
		servers: &fakeServers{log: log},
		pollers: &pollerSet{},
		metrics: &fakeMetrics{},
	}
}

func (e *env) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Deps{
		Fetcher:     e.fetcher,
		Builder:     e.builder,
		Connections: e.conns,
		Servers:     e.servers,
		Metrics:     e.metrics,
	}, Options{PollInterval: time.Second, ShutdownTimeout: waitTimeout})
	require.NoError(t, err)
	o.startPoller = e.pollers.start

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = o.Stop(ctx)
	})
	return o
}

func currentID(o *Orchestrator) uint64 {
	if s := o.Current(); s != nil {
		return s.ID
	}
	return 0
}

// ============================================================================
// Tests
// ============================================================================

func TestOrchestrator_StartBootsInOrder(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)

	require.NoError(t, o.Start(context.Background()))

	assert.Equal(t, []string{"fetch", "build", "open conn-1", "listen gen-1"}, e.log.list())

	cur := o.Current()
	require.NotNil(t, cur)
	assert.Equal(t, uint64(1), cur.ID)
	assert.Equal(t, StateLive, cur.State)
	assert.Equal(t, "conn-1", cur.ConnectionID)
	assert.Equal(t, "gen-1", cur.Addr)
	assert.Equal(t, "fake", cur.Source)
	assert.NotEmpty(t, cur.UUID)
	assert.NotEmpty(t, cur.Digest)
	assert.False(t, cur.LiveAt.IsZero())

	p := e.pollers.get(t, 0)
	assert.Equal(t, time.Second, p.cfg.Interval)
	assert.Equal(t, "generation-1", p.cfg.Name)
	assert.NotNil(t, p.cfg.Metrics)
	assert.Equal(t, []uint64{1}, e.metrics.liveIDs())

	assert.ErrorIs(t, o.Start(context.Background()), ErrAlreadyStarted)
}

func TestOrchestrator_DriftSwapsGenerations(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	first := e.pollers.get(t, 0)
	first.cfg.OnDrift()

	require.Eventually(t, func() bool { return currentID(o) == 2 }, waitTimeout, pollEvery)
	require.Eventually(t, func() bool { return len(o.Generations()) == 1 }, waitTimeout, pollEvery)

	assert.Less(t, e.log.index("listen gen-2"), e.log.index("stop gen-1"),
		"the old generation drains only after its successor is live")
	assert.Less(t, e.log.index("stop gen-1"), e.log.index("close conn-1"),
		"listener stops before its connection closes")
	assert.Equal(t, -1, e.log.index("close conn-2"))

	assert.False(t, first.Active())
	second := e.pollers.get(t, 1)
	assert.Equal(t, "generation-2", second.cfg.Name)
	assert.True(t, second.Active())

	assert.Equal(t, "conn-2", o.Current().ConnectionID)
	assert.Equal(t, 1, e.metrics.restartCount("soft/success"))
}

func TestOrchestrator_RestartRequestsCoalesce(t *testing.T) {
	e := newEnv()
	gate := make(chan struct{})
	e.fetcher.fn = func(ctx context.Context, call int) (*source.Artifact, error) {
		if call == 2 {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return source.NewArtifact(fmt.Sprintf("type Query { v%d: String }", call), "fake", time.Now()), nil
	}
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	assert.True(t, o.RequestRestart())
	assert.False(t, o.RequestRestart())
	e.pollers.get(t, 0).cfg.OnDrift()
	assert.ErrorIs(t, o.Restart(context.Background()), ErrRestartInProgress)

	close(gate)

	require.Eventually(t, func() bool { return currentID(o) == 2 }, waitTimeout, pollEvery)
	require.Eventually(t, func() bool { return len(o.Generations()) == 1 }, waitTimeout, pollEvery)

	assert.Equal(t, int32(2), e.fetcher.calls.Load())
	assert.Equal(t, 2, e.conns.count())
	assert.Equal(t, 2, e.pollers.count())
	assert.Equal(t, 3, e.metrics.restartCount("soft/coalesced"))
}

func TestOrchestrator_FailedRestartKeepsServing(t *testing.T) {
	e := newEnv()
	errUnreachable := errors.New("github unreachable")
	e.fetcher.fn = func(_ context.Context, call int) (*source.Artifact, error) {
		if call == 2 {
			return nil, errUnreachable
		}
		return source.NewArtifact("type Query { hello: String }", "fake", time.Now()), nil
	}
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	err := o.Restart(context.Background())
	var bootErr *BootError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, StepFetch, bootErr.Step)
	assert.Equal(t, uint64(2), bootErr.Generation)
	assert.ErrorIs(t, err, errUnreachable)

	cur := o.Current()
	require.NotNil(t, cur)
	assert.Equal(t, uint64(1), cur.ID)
	assert.Equal(t, StateLive, cur.State)
	assert.Equal(t, int32(0), e.conns.get(t, 0).closes.Load())

	require.Equal(t, 2, e.pollers.count(), "a fresh poller is armed for the surviving generation")
	assert.False(t, e.pollers.get(t, 0).Active())
	rearmed := e.pollers.get(t, 1)
	assert.True(t, rearmed.Active())
	assert.Equal(t, "generation-1", rearmed.cfg.Name)

	select {
	case reported := <-o.RestartErrors():
		assert.ErrorIs(t, reported, errUnreachable)
	default:
		t.Fatal("failed restart was not reported")
	}
	assert.Equal(t, 1, e.metrics.restartCount("soft/failure"))

	// The re-armed poller still drives restarts.
	e.fetcher.fn = nil
	rearmed.cfg.OnDrift()
	require.Eventually(t, func() bool { return currentID(o) == 3 }, waitTimeout, pollEvery)
}

func TestOrchestrator_BootRollback(t *testing.T) {
	failSecond := func(call int) error {
		if call == 2 {
			return errors.New("boom")
		}
		return nil
	}

	tests := []struct {
		name       string
		setup      func(e *env)
		step       string
		wantEvents []string
		never      []string
	}{
		{
			name:  "build",
			setup: func(e *env) { e.builder.fail = failSecond },
			step:  StepBuild,
			never: []string{"open conn-2", "listen gen-2"},
		},
		{
			name:  "connect",
			setup: func(e *env) { e.conns.fail = failSecond },
			step:  StepConnect,
			never: []string{"open conn-2", "listen gen-2"},
		},
		{
			name:       "listen",
			setup:      func(e *env) { e.servers.fail = failSecond },
			step:       StepListen,
			wantEvents: []string{"open conn-2", "close conn-2"},
			never:      []string{"listen gen-2", "stop gen-1", "close conn-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			tt.setup(e)
			o := e.orchestrator(t)
			require.NoError(t, o.Start(context.Background()))

			err := o.Restart(context.Background())
			var bootErr *BootError
			require.ErrorAs(t, err, &bootErr)
			assert.Equal(t, tt.step, bootErr.Step)

			for _, ev := range tt.wantEvents {
				assert.NotEqual(t, -1, e.log.index(ev), "missing event %q", ev)
			}
			for _, ev := range tt.never {
				assert.Equal(t, -1, e.log.index(ev), "unexpected event %q", ev)
			}
			assert.Equal(t, uint64(1), currentID(o))
		})
	}
}

func TestOrchestrator_ConnectionReuseRejected(t *testing.T) {
	e := newEnv()
	e.conns.reuse = true
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	err := o.Restart(context.Background())
	assert.ErrorIs(t, err, ErrConnectionReused)
	var bootErr *BootError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, StepConnect, bootErr.Step)

	assert.Equal(t, int32(0), e.conns.get(t, 0).closes.Load(), "the live generation's connection is left alone")
	assert.Equal(t, uint64(1), currentID(o))
	assert.Equal(t, -1, e.log.index("listen gen-2"))
}

func TestOrchestrator_StaleDriftIgnored(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	first := e.pollers.get(t, 0)
	require.NoError(t, o.Restart(context.Background()))
	require.Equal(t, uint64(2), currentID(o))

	first.cfg.OnDrift()
	assert.Never(t, func() bool { return e.conns.count() > 2 }, 100*time.Millisecond, pollEvery)
	assert.Equal(t, uint64(2), currentID(o))
}

func TestOrchestrator_Stop(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	require.NoError(t, o.Stop(context.Background()))

	assert.Less(t, e.log.index("stop gen-1"), e.log.index("close conn-1"))
	select {
	case <-o.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
	assert.Nil(t, o.Current())
	assert.Empty(t, o.Generations())
	assert.False(t, e.pollers.get(t, 0).Active())

	live := e.metrics.liveIDs()
	assert.Equal(t, uint64(0), live[len(live)-1])
	assert.Equal(t, 1, e.metrics.restartCount("hard/success"))

	// Idempotent, and nothing restarts afterwards.
	require.NoError(t, o.Stop(context.Background()))
	assert.Equal(t, int32(1), e.conns.get(t, 0).closes.Load())
	assert.False(t, o.RequestRestart())
	assert.ErrorIs(t, o.Restart(context.Background()), ErrStopped)
	assert.ErrorIs(t, o.Start(context.Background()), ErrStopped)
	assert.Equal(t, 1, e.conns.count())
}

func TestOrchestrator_StopReportsDrainErrors(t *testing.T) {
	e := newEnv()
	errStuck := errors.New("listener stuck")
	errReset := errors.New("connection reset")
	e.servers.stopErr = errStuck
	e.conns.closeErr = errReset
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	err := o.Stop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStuck)
	assert.ErrorIs(t, err, errReset)
	assert.Equal(t, int32(1), e.conns.get(t, 0).closes.Load(), "connection closes even when the listener failed to stop")
	assert.Equal(t, 1, e.metrics.restartCount("hard/failure"))
}

func TestOrchestrator_StartFailure(t *testing.T) {
	e := newEnv()
	errBind := errors.New("address already in use")
	e.servers.fail = func(int) error { return errBind }
	o := e.orchestrator(t)

	err := o.Start(context.Background())
	var bootErr *BootError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, StepListen, bootErr.Step)
	assert.Equal(t, uint64(1), bootErr.Generation)
	assert.ErrorIs(t, err, errBind)

	assert.Equal(t, int32(1), e.conns.get(t, 0).closes.Load())
	assert.Equal(t, 0, e.pollers.count())
	assert.Nil(t, o.Current())
	select {
	case <-o.Done():
	default:
		t.Fatal("Done must be closed after a failed start")
	}
	assert.ErrorIs(t, o.Start(context.Background()), ErrStopped)
}

func TestOrchestrator_StopDuringRestart(t *testing.T) {
	e := newEnv()
	entered := make(chan struct{})
	e.fetcher.fn = func(ctx context.Context, call int) (*source.Artifact, error) {
		if call == 2 {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return source.NewArtifact("type Query { hello: String }", "fake", time.Now()), nil
	}
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	require.True(t, o.RequestRestart())
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, o.Stop(ctx))

	assert.Equal(t, 1, e.conns.count())
	assert.Equal(t, 1, e.pollers.count(), "no poller is re-armed after a hard stop")
	assert.Nil(t, o.Current())

	select {
	case err := <-o.RestartErrors():
		assert.ErrorIs(t, err, context.Canceled)
	default:
		t.Fatal("cancelled restart was not reported")
	}
}

func TestOrchestrator_StopDuringFirstBoot(t *testing.T) {
	e := newEnv()
	entered := make(chan struct{})
	release := make(chan struct{})
	e.fetcher.fn = func(context.Context, int) (*source.Artifact, error) {
		close(entered)
		<-release
		return source.NewArtifact("type Query { hello: String }", "fake", time.Now()), nil
	}
	o := e.orchestrator(t)

	startErr := make(chan error, 1)
	go func() { startErr <- o.Start(context.Background()) }()
	<-entered

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		err := o.Stop(ctx)
		e.log.add("stop returned")
		stopped <- err
	}()

	assert.Never(t, func() bool { return e.log.index("stop returned") != -1 }, 50*time.Millisecond, pollEvery,
		"Stop must wait for the boot in flight")
	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, <-startErr, ErrStopped)

	assert.Less(t, e.log.index("close conn-1"), e.log.index("stop returned"))
	assert.Less(t, e.log.index("stop gen-1"), e.log.index("close conn-1"))
	assert.Equal(t, 0, e.pollers.count())
	assert.Nil(t, o.Current())
	select {
	case <-o.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
}

func TestOrchestrator_StopCancelsFirstBoot(t *testing.T) {
	e := newEnv()
	entered := make(chan struct{})
	e.fetcher.fn = func(ctx context.Context, _ int) (*source.Artifact, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := e.orchestrator(t)

	startErr := make(chan error, 1)
	go func() { startErr <- o.Start(context.Background()) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, o.Stop(ctx))

	select {
	case err := <-startErr:
		assert.ErrorIs(t, err, ErrStopped)
		assert.ErrorIs(t, err, context.Canceled)
		var bootErr *BootError
		require.ErrorAs(t, err, &bootErr)
		assert.Equal(t, StepFetch, bootErr.Step)
	case <-time.After(waitTimeout):
		t.Fatal("Start did not return after Stop")
	}
	assert.Equal(t, 0, e.conns.count())
}

func TestOrchestrator_StopCancelsRestart(t *testing.T) {
	e := newEnv()
	entered := make(chan struct{})
	e.fetcher.fn = func(ctx context.Context, call int) (*source.Artifact, error) {
		if call == 2 {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return source.NewArtifact("type Query { hello: String }", "fake", time.Now()), nil
	}
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	restartErr := make(chan error, 1)
	go func() { restartErr <- o.Restart(context.Background()) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, o.Stop(ctx))

	select {
	case err := <-restartErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("Restart did not return after Stop")
	}
	assert.Equal(t, 1, e.conns.count())
}

func TestOrchestrator_ConnectionOwnersReleased(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, o.Restart(context.Background()))
		require.Eventually(t, func() bool { return len(o.Generations()) == 1 }, waitTimeout, pollEvery)
	}

	o.mu.Lock()
	owners := len(o.connOwners)
	retired := o.retired
	o.mu.Unlock()
	assert.Equal(t, 1, owners, "only the live generation's connection is tracked")
	assert.Equal(t, "conn-5", retired)
}

func TestOrchestrator_ClosedConnectionRefused(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Restart(context.Background()))
	require.Eventually(t, func() bool { return len(o.Generations()) == 1 }, waitTimeout, pollEvery)

	// The factory now hands back the connection generation 1 closed.
	e.conns.mu.Lock()
	first := e.conns.conns[0]
	e.conns.conns = []*fakeConn{first}
	e.conns.reuse = true
	e.conns.mu.Unlock()

	err := o.Restart(context.Background())
	assert.ErrorIs(t, err, ErrConnectionReused)
	assert.Equal(t, uint64(2), currentID(o))
}

func TestOrchestrator_Run(t *testing.T) {
	e := newEnv()
	o := e.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return currentID(o) == 1 }, waitTimeout, pollEvery)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int32(1), e.conns.get(t, 0).closes.Load())
}

func TestNew_Validation(t *testing.T) {
	e := newEnv()
	deps := Deps{Fetcher: e.fetcher, Builder: e.builder, Connections: e.conns, Servers: e.servers}

	_, err := New(Deps{}, Options{PollInterval: time.Second})
	assert.Error(t, err)

	_, err = New(deps, Options{})
	assert.ErrorIs(t, err, drift.ErrInvalidInterval)

	_, err = New(deps, Options{PollInterval: 100 * time.Millisecond})
	assert.ErrorIs(t, err, drift.ErrIntervalTooShort)

	o, err := New(deps, Options{PollInterval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownTimeout, o.opts.ShutdownTimeout)
	assert.ErrorIs(t, o.Restart(context.Background()), ErrNotStarted)
	assert.False(t, o.RequestRestart())
	assert.Nil(t, o.Current())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "live", StateLive.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())

	text, err := StateDraining.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "draining", string(text))
}
