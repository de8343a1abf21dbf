package pool

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"supapool/pkg/client"
)

// pooledConn wraps one backend handle with the pool's bookkeeping. The id is
// generated at creation time; handle values themselves are never compared.
type pooledConn struct {
	id         string
	handle     client.Client
	active     bool
	createdAt  time.Time
	lastUsed   time.Time
	queryCount int64
}

func newPooledConn(handle client.Client) *pooledConn {
	now := time.Now()
	return &pooledConn{
		id:        uuid.Must(uuid.NewV4()).String(),
		handle:    handle,
		createdAt: now,
		lastUsed:  now,
	}
}

// waiter is a pending acquisition. The channel is buffered so a releaser can
// hand off a connection without blocking while holding the pool mutex; it is
// closed instead when the pool shuts down.
type waiter struct {
	ch         chan *pooledConn
	enqueuedAt time.Time
}

// ConnectionInfo is a read-only snapshot of one pooled connection, exposed
// through the status API.
type ConnectionInfo struct {
	ID         string    `json:"id"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
	QueryCount int64     `json:"query_count"`
}
