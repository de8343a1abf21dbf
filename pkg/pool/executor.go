package pool

import (
	"context"
	"time"

	"supapool/pkg/client"
)

// QueryFunc runs caller logic against an acquired handle. The handle is only
// valid for the duration of the call.
type QueryFunc func(ctx context.Context, c client.Client) error

// ExecuteQuery runs fn with an automatically acquired and released handle.
// Acquisition errors and fn errors are both retried up to RetryAttempts
// times with a flat RetryDelay between attempts; each retry acquires fresh.
// The last error is propagated once retries are exhausted.
func (p *Pool) ExecuteQuery(ctx context.Context, fn QueryFunc) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= p.cfg.RetryAttempts {
			return lastErr
		}

		if p.rec != nil {
			p.rec.RecordRetry()
		}
		p.log.WarnWith("query failed, retrying",
			"attempt", attempt+1, "max_attempts", p.cfg.RetryAttempts+1, "error", err)

		select {
		case <-time.After(p.cfg.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runOnce performs a single acquire → fn → release cycle. Release runs on
// every path, including panics inside fn.
func (p *Pool) runOnce(ctx context.Context, fn QueryFunc) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx, lease.Client())
}

// Query is a convenience wrapper running one read request through
// ExecuteQuery and collecting the result
func (p *Pool) Query(ctx context.Context, req client.QueryRequest) (*client.Result, error) {
	var result *client.Result
	err := p.ExecuteQuery(ctx, func(ctx context.Context, c client.Client) error {
		res, qerr := c.Query(ctx, req)
		if qerr != nil {
			return qerr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
