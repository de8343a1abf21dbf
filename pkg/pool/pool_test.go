package pool

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"supapool/pkg/client"
	apperrors "supapool/pkg/errors"
	"supapool/pkg/logger"
)

// fakeClient is an in-memory backend handle with overlap detection
type fakeClient struct {
	busy        int32
	overlaps    *int32
	closed      atomic.Bool
	validateErr error
	queryErr    error
}

func (c *fakeClient) Query(ctx context.Context, req client.QueryRequest) (*client.Result, error) {
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) && c.overlaps != nil {
		atomic.AddInt32(c.overlaps, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.StoreInt32(&c.busy, 0)
	return &client.Result{}, nil
}

func (c *fakeClient) Validate(ctx context.Context) error {
	return c.validateErr
}

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeFactory produces fakeClients and can inject failures
type fakeFactory struct {
	mu          sync.Mutex
	created     int
	failNext    int
	validateErr error
	overlaps    *int32
}

func (f *fakeFactory) Name() string { return "fake" }

func (f *fakeFactory) New(ctx context.Context) (client.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("factory down")
	}
	f.created++
	return &fakeClient{validateErr: f.validateErr, overlaps: f.overlaps}, nil
}

func (f *fakeFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.ErrorLevel, "text")
}

func newTestPool(t *testing.T, cfg Config, factory client.Factory) *Pool {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour // tests trigger CleanupIdle directly
	}
	p := New(cfg, factory, testLogger())
	t.Cleanup(p.Shutdown)
	return p
}

func TestAcquireCreatesAndReuses(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 3}, factory)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if factory.Created() != 1 {
		t.Errorf("Expected 1 created connection, got %d", factory.Created())
	}
	lease.Release()

	// Second acquire must reuse the idle connection, not create a new one
	lease2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	defer lease2.Release()
	if factory.Created() != 1 {
		t.Errorf("Expected idle reuse, factory created %d connections", factory.Created())
	}
}

func TestCapacityBound(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 3, ConnectionTimeout: 200 * time.Millisecond}, factory)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			if total := p.Stats().TotalConnections; total > 3 {
				t.Errorf("Pool exceeded capacity: %d connections", total)
			}
			time.Sleep(time.Millisecond)
			lease.Release()
		}()
	}
	wg.Wait()

	if total := p.Stats().TotalConnections; total > 3 {
		t.Errorf("Pool exceeded capacity after settling: %d", total)
	}
	if factory.Created() > 3 {
		t.Errorf("Factory created %d connections for pool of 3", factory.Created())
	}
}

func TestMutualExclusion(t *testing.T) {
	var overlaps int32
	factory := &fakeFactory{overlaps: &overlaps}
	p := newTestPool(t, Config{PoolSize: 4, ConnectionTimeout: time.Second, RetryAttempts: 0}, factory)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.ExecuteQuery(context.Background(), func(ctx context.Context, c client.Client) error {
				_, err := c.Query(ctx, client.QueryRequest{Table: "events"})
				return err
			})
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Errorf("Detected %d overlapping uses of a pooled handle", n)
	}
}

func TestFIFOFairness(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1, ConnectionTimeout: 2 * time.Second}, factory)

	holder, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	order := make(chan string, 2)
	ready := make(chan struct{}, 2)

	enqueue := func(name string) {
		go func() {
			ready <- struct{}{}
			lease, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("%s: acquire failed: %v", name, err)
				return
			}
			order <- name
			time.Sleep(5 * time.Millisecond)
			lease.Release()
		}()
	}

	enqueue("A")
	<-ready
	waitForWaiters(t, p, 1)
	enqueue("B")
	<-ready
	waitForWaiters(t, p, 2)

	holder.Release()

	first := <-order
	second := <-order
	if first != "A" || second != "B" {
		t.Errorf("Expected FIFO order A then B, got %s then %s", first, second)
	}
}

func TestAcquireTimeout(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1, ConnectionTimeout: 100 * time.Millisecond}, factory)

	holder, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	_, err = p.Acquire(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, apperrors.ErrAcquireTimeout) {
		t.Fatalf("Expected ErrAcquireTimeout, got %v", err)
	}
	if elapsed < 60*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("Timeout fired after %v, expected ~100ms", elapsed)
	}
	if waiting := p.Status().WaitingCount; waiting != 0 {
		t.Errorf("Timed-out waiter still queued: %d", waiting)
	}

	// A later release must not resolve the timed-out waiter; the connection
	// goes idle instead.
	holder.Release()
	time.Sleep(20 * time.Millisecond)
	stats := p.Stats()
	if stats.IdleConnections != 1 || stats.ActiveConnections != 0 {
		t.Errorf("Expected 1 idle connection after release, got %+v", stats)
	}
}

func TestSaturationScenario(t *testing.T) {
	// poolSize=2, connectionTimeout=100ms, three concurrent acquires with no
	// release: two resolve, the third times out after ~100ms.
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 2, ConnectionTimeout: 100 * time.Millisecond}, factory)

	type outcome struct {
		lease *Lease
		err   error
	}
	results := make(chan outcome, 3)
	for i := 0; i < 3; i++ {
		go func() {
			lease, err := p.Acquire(context.Background())
			results <- outcome{lease, err}
		}()
	}

	var granted int
	var timeouts int
	for i := 0; i < 3; i++ {
		res := <-results
		if res.err == nil {
			granted++
		} else if errors.Is(res.err, apperrors.ErrAcquireTimeout) {
			timeouts++
		} else {
			t.Errorf("Unexpected error: %v", res.err)
		}
	}

	if granted != 2 {
		t.Errorf("Expected 2 granted acquisitions, got %d", granted)
	}
	if timeouts != 1 {
		t.Errorf("Expected 1 timeout, got %d", timeouts)
	}
}

func TestIdleReap(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 4, IdleTimeout: 50 * time.Millisecond}, factory)

	stale, _ := p.Acquire(context.Background())
	fresh, _ := p.Acquire(context.Background())
	stale.Release()
	fresh.Release()

	time.Sleep(70 * time.Millisecond)

	// Touch one connection so it survives the sweep
	survivor, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	survivor.Release()

	reaped := p.CleanupIdle()
	if reaped != 1 {
		t.Errorf("Expected 1 reaped connection, got %d", reaped)
	}
	stats := p.Stats()
	if stats.TotalConnections != 1 {
		t.Errorf("Expected 1 surviving connection, got %d", stats.TotalConnections)
	}
}

func TestIdleReapSkipsActive(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 2, IdleTimeout: 10 * time.Millisecond}, factory)

	lease, _ := p.Acquire(context.Background())
	time.Sleep(30 * time.Millisecond)

	if reaped := p.CleanupIdle(); reaped != 0 {
		t.Errorf("Reaper removed %d active connections", reaped)
	}
	lease.Release()
}

func TestCreationFailure(t *testing.T) {
	factory := &fakeFactory{failNext: 1}
	p := newTestPool(t, Config{PoolSize: 2}, factory)

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, apperrors.ErrConnectionFailed) {
		t.Fatalf("Expected ErrConnectionFailed, got %v", err)
	}
	if failed := p.Stats().FailedConnections; failed != 1 {
		t.Errorf("Expected 1 failed connection, got %d", failed)
	}

	// Capacity slot must be returned: the next acquire succeeds
	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after failure should succeed: %v", err)
	}
	lease.Release()
}

func TestValidationToleratesMissingRelation(t *testing.T) {
	factory := &fakeFactory{validateErr: errors.New(`relation "public.health_check" does not exist`)}
	p := newTestPool(t, Config{PoolSize: 2}, factory)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Missing probe table should be tolerated, got %v", err)
	}
	lease.Release()

	if failed := p.Stats().FailedConnections; failed != 0 {
		t.Errorf("Tolerated probe error counted as failure: %d", failed)
	}
}

func TestValidationFailureRejected(t *testing.T) {
	factory := &fakeFactory{validateErr: errors.New("permission denied")}
	p := newTestPool(t, Config{PoolSize: 2}, factory)

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, apperrors.ErrConnectionFailed) {
		t.Fatalf("Expected ErrConnectionFailed, got %v", err)
	}
}

func TestWarmUp(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 5}, factory)

	created := p.WarmUp(context.Background(), 2)
	if created != 2 {
		t.Errorf("Expected 2 warm connections, got %d", created)
	}

	stats := p.Stats()
	if stats.TotalConnections != 2 || stats.IdleConnections != 2 || stats.ActiveConnections != 0 {
		t.Errorf("Unexpected stats after warm-up: %+v", stats)
	}
}

func TestWarmUpToleratesFailures(t *testing.T) {
	factory := &fakeFactory{failNext: 1}
	p := newTestPool(t, Config{PoolSize: 5}, factory)

	created := p.WarmUp(context.Background(), 3)
	if created != 2 {
		t.Errorf("Expected 2 created despite one failure, got %d", created)
	}
}

func TestWarmUpDefaultCount(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1}, factory)

	// Default is min(2, poolSize): a pool of one warms one connection
	if created := p.WarmUp(context.Background(), 0); created != 1 {
		t.Errorf("Expected 1 warm connection for pool of 1, got %d", created)
	}
}

func TestStatsConsistency(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 4, ConnectionTimeout: 500 * time.Millisecond}, factory)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			lease.Release()
		}()
	}
	wg.Wait()

	stats := p.Stats()
	if stats.ActiveConnections+stats.IdleConnections != stats.TotalConnections {
		t.Errorf("Stats invariant violated: %+v", stats)
	}
	if stats.TotalQueries == 0 {
		t.Error("Expected queries to be counted")
	}
	if stats.AvgResponseTimeMS < 0 {
		t.Errorf("Negative average response time: %f", stats.AvgResponseTimeMS)
	}
}

func TestStatusDerivations(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 4}, factory)

	lease, _ := p.Acquire(context.Background())
	defer lease.Release()

	status := p.Status()
	if status.PoolSize != 4 {
		t.Errorf("Expected pool size 4, got %d", status.PoolSize)
	}
	if status.UtilizationRate != 25 {
		t.Errorf("Expected 25%% utilization, got %f", status.UtilizationRate)
	}
	if status.Backend != "fake" {
		t.Errorf("Expected backend fake, got %s", status.Backend)
	}
	if status.ShuttingDown {
		t.Error("Pool should not report shutting down")
	}
}

func TestShutdownRejectsWaiters(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1, ConnectionTimeout: 5 * time.Second}, factory)

	holder, _ := p.Acquire(context.Background())
	_ = holder

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()
	waitForWaiters(t, p, 1)

	p.Shutdown()

	if err := <-errCh; !errors.Is(err, apperrors.ErrPoolShutdown) {
		t.Errorf("Expected ErrPoolShutdown for queued waiter, got %v", err)
	}

	stats := p.Stats()
	if stats.TotalConnections != 0 || stats.TotalQueries != 0 {
		t.Errorf("Stats not reset after shutdown: %+v", stats)
	}

	// Acquire after shutdown is refused
	if _, err := p.Acquire(context.Background()); !errors.Is(err, apperrors.ErrPoolShutdown) {
		t.Errorf("Expected ErrPoolShutdown after shutdown, got %v", err)
	}

	// Second shutdown is a no-op
	p.Shutdown()
}

func TestReleaseAfterShutdownIgnored(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1}, factory)

	lease, _ := p.Acquire(context.Background())
	p.Shutdown()

	// The pool no longer owns the connection; release must not panic
	lease.Release()
}

func TestDuplicateReleaseIgnored(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 2}, factory)

	lease, _ := p.Acquire(context.Background())
	lease.Release()
	lease.Release()

	stats := p.Stats()
	if stats.IdleConnections != 1 {
		t.Errorf("Duplicate release corrupted stats: %+v", stats)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 1, ConnectionTimeout: 5 * time.Second}, factory)

	holder, _ := p.Acquire(context.Background())
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()
	waitForWaiters(t, p, 1)

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if waiting := p.Status().WaitingCount; waiting != 0 {
		t.Errorf("Cancelled waiter still queued: %d", waiting)
	}
}

func TestConnectionsSnapshot(t *testing.T) {
	factory := &fakeFactory{}
	p := newTestPool(t, Config{PoolSize: 3}, factory)

	p.WarmUp(context.Background(), 2)
	infos := p.Connections()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 connection snapshots, got %d", len(infos))
	}
	for _, info := range infos {
		if info.ID == "" {
			t.Error("Connection snapshot missing id")
		}
		if info.Active {
			t.Error("Warm connection reported active")
		}
	}
}

// waitForWaiters blocks until the queue reaches depth n or the deadline hits
func waitForWaiters(t *testing.T, p *Pool, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Status().WaitingCount >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Queue never reached %d waiters", n)
}
