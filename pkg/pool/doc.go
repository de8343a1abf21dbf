// Package pool implements the managed connection pool at the core of
// supapool. It owns a bounded set of lazily created backend handles,
// arbitrates concurrent demand through a FIFO waiting queue with acquisition
// timeouts, reaps idle handles in the background, and offers a retry-wrapped
// "run one query" entry point.
//
// The pool is constructed explicitly and passed to its consumers; there is
// no process-wide instance. Acquire returns a Lease pairing the handle with
// its release operation, so callers never need to identify handles back to
// the pool. One mutex guards the connection table, the waiting queue, and
// the statistics; the idle-scan-and-mark step never releases it, which is
// what makes handing the same handle to two callers impossible.
package pool
