package client

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// QueryRequest describes a read against a backend table
type QueryRequest struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"` // empty selects all columns
	Limit   int      `json:"limit,omitempty"`   // values <= 0 mean no limit
}

// Result holds decoded rows from a backend query
type Result struct {
	Rows []map[string]any `json:"rows"`
}

// Client is the queryable handle the pool hands out. Implementations must be
// safe for sequential reuse by different callers; the pool guarantees a
// handle is never used by two callers at once.
type Client interface {
	// Query runs a read request against the backend
	Query(ctx context.Context, req QueryRequest) (*Result, error)

	// Validate performs a cheap, side-effect-free probe confirming the
	// handle is live. A missing probe table is reported as an error; use
	// IsMissingRelation to distinguish it.
	Validate(ctx context.Context) error

	// Close releases any underlying resources
	Close() error
}

// Factory creates new handles for the pool
type Factory interface {
	// Name identifies the backend kind, used in logs and metrics labels
	Name() string

	// New builds a fresh handle. The returned handle has not been validated
	New(ctx context.Context) (Client, error)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier reports whether s is safe to interpolate as a table or
// column name
func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// checkRequest rejects malformed query requests before they reach a backend
func checkRequest(req QueryRequest) error {
	if !validIdentifier(req.Table) {
		return fmt.Errorf("invalid table name: %q", req.Table)
	}
	for _, col := range req.Columns {
		if !validIdentifier(col) {
			return fmt.Errorf("invalid column name: %q", col)
		}
	}
	return nil
}

// Markers of a "relation does not exist" condition across backends:
// PostgREST error codes, the Postgres undefined_table SQLSTATE, the MySQL
// unknown-table error number, and the SQLite message.
var missingRelationMarkers = []string{
	"PGRST205",
	"42P01",
	"does not exist",
	"Error 1146",
	"no such table",
}

// IsMissingRelation reports whether err indicates the probed table is not
// provisioned yet. The pool tolerates this during connection creation: the
// transport is reachable even though the schema is empty.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range missingRelationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
