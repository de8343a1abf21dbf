package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"supapool/pkg/client"
	apperrors "supapool/pkg/errors"
	"supapool/pkg/logger"
)

// Default configuration values
const (
	DefaultPoolSize          = 10
	DefaultConnectionTimeout = 5 * time.Second
	DefaultIdleTimeout       = 5 * time.Minute
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 1 * time.Second
	DefaultCleanupInterval   = 30 * time.Second
)

// Config holds pool tuning parameters
type Config struct {
	PoolSize          int
	ConnectionTimeout time.Duration
	IdleTimeout       time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	CleanupInterval   time.Duration
}

// withDefaults fills zero-valued fields
func (c Config) withDefaults() Config {
	if c.PoolSize < 1 {
		c.PoolSize = DefaultPoolSize
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Pool manages a bounded set of backend handles
type Pool struct {
	cfg     Config
	factory client.Factory
	log     *logger.Logger
	rec     Recorder

	mu      sync.Mutex
	conns   map[string]*pooledConn
	waiters []*waiter
	pending int // creations in flight, counted against capacity
	closed  bool

	failedConns   int64
	totalQueries  int64
	respTimeAvg   float64 // running mean, milliseconds
	respTimeCount int64

	done chan struct{}
}

// New creates a pool and starts its idle reaper. The pool is empty until
// callers acquire connections or WarmUp is invoked.
func New(cfg Config, factory client.Factory, log *logger.Logger) *Pool {
	p := &Pool{
		cfg:     cfg.withDefaults(),
		factory: factory,
		log:     log,
		conns:   make(map[string]*pooledConn),
		done:    make(chan struct{}),
	}

	go p.reapLoop()
	return p
}

// SetRecorder attaches a metrics recorder. Must be called before the pool
// is shared across goroutines.
func (p *Pool) SetRecorder(rec Recorder) {
	p.rec = rec
}

// Lease pairs an acquired handle with its release operation. Callers must
// call Release exactly once and must not retain the handle afterwards.
type Lease struct {
	pool     *Pool
	conn     *pooledConn
	released atomic.Bool
}

// Client returns the backend handle held by this lease
func (l *Lease) Client() client.Client {
	return l.conn.handle
}

// ID returns the pooled connection id, useful for request logs
func (l *Lease) ID() string {
	return l.conn.id
}

// Release returns the connection to the pool. A duplicate release is logged
// and ignored; it never propagates an error to the caller.
func (l *Lease) Release() {
	if !l.released.CompareAndSwap(false, true) {
		l.pool.log.WarnWith("duplicate release ignored", "id", l.conn.id)
		return
	}
	l.pool.release(l.conn)
}

// Acquire returns a lease on a backend handle. It reuses an idle connection
// when one exists, creates a new one while under capacity, and otherwise
// queues FIFO behind earlier callers until a handle is released or the
// connection timeout fires.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, apperrors.ErrPoolShutdown
	}

	// Reuse an idle connection. The scan and the mark-active happen under
	// one mutex hold, so two callers can never pick the same connection.
	if c := p.idleLocked(); c != nil {
		p.activateLocked(c)
		p.observeResolveLocked(start)
		p.mu.Unlock()
		p.observeAcquire(start, true)
		return &Lease{pool: p, conn: c}, nil
	}

	// Create while under capacity. The slot is reserved before the mutex is
	// released for the validation round-trip, keeping the capacity bound.
	if len(p.conns)+p.pending < p.cfg.PoolSize {
		p.pending++
		p.mu.Unlock()

		c, err := p.createConnection(ctx, true)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.observeResolveLocked(start)
		p.mu.Unlock()
		p.observeAcquire(start, false)
		return &Lease{pool: p, conn: c}, nil
	}

	// Saturated: join the waiting queue.
	w := &waiter{ch: make(chan *pooledConn, 1), enqueuedAt: start}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.ConnectionTimeout)
	defer timer.Stop()

	select {
	case c, ok := <-w.ch:
		if !ok {
			return nil, apperrors.ErrPoolShutdown
		}
		p.mu.Lock()
		p.observeResolveLocked(start)
		p.mu.Unlock()
		p.observeAcquire(start, true)
		return &Lease{pool: p, conn: c}, nil

	case <-timer.C:
		if c := p.cancelWaiter(w); c != nil {
			// A release beat the timer; the handoff wins.
			p.mu.Lock()
			p.observeResolveLocked(start)
			p.mu.Unlock()
			p.observeAcquire(start, true)
			return &Lease{pool: p, conn: c}, nil
		}
		if p.rec != nil {
			p.rec.RecordTimeout()
		}
		p.log.WarnWith("acquire timed out", "waited_ms", time.Since(start).Milliseconds())
		return nil, apperrors.ErrAcquireTimeout

	case <-ctx.Done():
		if c := p.cancelWaiter(w); c != nil {
			// Handed a connection while cancelling; give it straight back.
			p.release(c)
		}
		return nil, ctx.Err()
	}
}

// idleLocked returns an inactive connection, or nil. Callers must hold the
// mutex.
func (p *Pool) idleLocked() *pooledConn {
	for _, c := range p.conns {
		if !c.active {
			return c
		}
	}
	return nil
}

// activateLocked marks a connection as checked out. Callers must hold the
// mutex.
func (p *Pool) activateLocked(c *pooledConn) {
	c.active = true
	c.lastUsed = time.Now()
	p.totalQueries++
}

// observeResolveLocked folds one acquisition wait into the running mean.
// Callers must hold the mutex.
func (p *Pool) observeResolveLocked(start time.Time) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	p.respTimeCount++
	p.respTimeAvg += (elapsed - p.respTimeAvg) / float64(p.respTimeCount)
}

func (p *Pool) observeAcquire(start time.Time, reused bool) {
	if p.rec != nil {
		p.rec.ObserveAcquire(float64(time.Since(start).Microseconds())/1000.0, reused)
	}
}

// cancelWaiter removes w from the queue. A nil return means the waiter was
// still queued and is now gone; a non-nil return means a releaser already
// popped it and the delivered connection must be used or returned.
func (p *Pool) cancelWaiter(w *waiter) *pooledConn {
	p.mu.Lock()
	for i, cand := range p.waiters {
		if cand == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return nil
		}
	}
	p.mu.Unlock()

	// Not queued anymore: the handoff (or shutdown close) already happened
	// under the mutex, so the channel op cannot block.
	select {
	case c, ok := <-w.ch:
		if !ok {
			return nil
		}
		return c
	default:
		return nil
	}
}

// createConnection builds and validates a new handle. The caller must have
// reserved a capacity slot by incrementing pending; it is consumed here.
// When activate is true the connection is registered already checked out.
func (p *Pool) createConnection(ctx context.Context, activate bool) (*pooledConn, error) {
	handle, err := p.factory.New(ctx)
	if err == nil {
		if verr := handle.Validate(ctx); verr != nil {
			if client.IsMissingRelation(verr) {
				// Transport reachable, schema not provisioned yet.
				p.log.DebugWith("probe table missing, connection accepted", "backend", p.factory.Name())
			} else {
				_ = handle.Close()
				err = verr
			}
		}
	}

	p.mu.Lock()
	p.pending--

	if err != nil {
		p.failedConns++
		p.mu.Unlock()
		if p.rec != nil {
			p.rec.RecordCreationFailure()
		}
		p.log.ErrorWithErr("connection creation failed", err, "backend", p.factory.Name())
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err)
	}

	if p.closed {
		p.mu.Unlock()
		_ = handle.Close()
		return nil, apperrors.ErrPoolShutdown
	}

	c := newPooledConn(handle)
	if activate {
		p.activateLocked(c)
	}
	p.conns[c.id] = c
	total := len(p.conns)
	p.mu.Unlock()

	p.log.DebugWith("connection created", "id", c.id, "total", total)
	return c, nil
}

// release returns a connection to the pool and services the oldest waiter,
// if any. Releasing a connection the pool does not own is logged and
// swallowed.
func (p *Pool) release(c *pooledConn) {
	p.mu.Lock()
	owned, ok := p.conns[c.id]
	if !ok || owned != c {
		p.mu.Unlock()
		p.log.WarnWith("release of unknown connection ignored", "id", c.id)
		return
	}

	c.active = false
	c.lastUsed = time.Now()
	c.queryCount++

	// Hand the connection straight to the oldest waiter rather than parking
	// it idle. FIFO order bounds the worst-case wait.
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.activateLocked(c)
		w.ch <- c
	}
	p.mu.Unlock()
}

// WarmUp creates up to n idle connections, best effort. Individual failures
// are logged and do not abort the batch. When n <= 0 the default of
// min(2, PoolSize) is used. Returns the number of connections created.
func (p *Pool) WarmUp(ctx context.Context, n int) int {
	if n <= 0 {
		n = 2
	}
	if n > p.cfg.PoolSize {
		n = p.cfg.PoolSize
	}

	created := 0
	for i := 0; i < n; i++ {
		p.mu.Lock()
		if p.closed || len(p.conns)+p.pending >= p.cfg.PoolSize {
			p.mu.Unlock()
			break
		}
		p.pending++
		p.mu.Unlock()

		if _, err := p.createConnection(ctx, false); err != nil {
			p.log.WarnWith("warm-up connection failed", "error", err)
			continue
		}
		created++
	}

	p.log.InfoWith("pool warmed up", "requested", n, "created", created)
	return created
}

// CleanupIdle removes connections idle longer than the idle timeout. Active
// connections and the waiting queue are never touched. The reaper calls this
// on every tick; it is exported so operators and tests can trigger a pass
// directly.
func (p *Pool) CleanupIdle() int {
	now := time.Now()
	var reaped []*pooledConn

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	for id, c := range p.conns {
		if !c.active && now.Sub(c.lastUsed) > p.cfg.IdleTimeout {
			delete(p.conns, id)
			reaped = append(reaped, c)
		}
	}
	p.mu.Unlock()

	for _, c := range reaped {
		if err := c.handle.Close(); err != nil {
			p.log.WarnWith("failed to close reaped connection", "id", c.id, "error", err)
		}
	}

	if len(reaped) > 0 {
		if p.rec != nil {
			p.rec.RecordReaped(len(reaped))
		}
		p.log.InfoWith("reaped idle connections", "count", len(reaped))
	}
	return len(reaped)
}

// reapLoop drives periodic idle cleanup until shutdown
func (p *Pool) reapLoop() {
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.CleanupIdle()
		}
	}
}

// Shutdown stops the reaper, rejects every queued waiter, closes all
// connections, and resets the statistics. Repeated calls are no-ops.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)

	waiters := p.waiters
	p.waiters = nil
	conns := make([]*pooledConn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[string]*pooledConn)

	p.failedConns = 0
	p.totalQueries = 0
	p.respTimeAvg = 0
	p.respTimeCount = 0

	// Closing the handoff channels under the mutex keeps rejection and
	// handoff mutually exclusive.
	for _, w := range waiters {
		close(w.ch)
	}
	p.mu.Unlock()

	for _, c := range conns {
		_ = c.handle.Close()
	}

	p.log.InfoWith("pool shut down", "closed_connections", len(conns), "rejected_waiters", len(waiters))
}
