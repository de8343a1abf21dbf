package client

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLClient is a direct database handle pinned to a single physical
// connection, so the pool's bookkeeping maps one handle to one connection.
type SQLClient struct {
	db         *sql.DB
	driver     string
	probeTable string
}

// NewSQLClient opens a single-connection database handle
func NewSQLClient(driver, dsn, probeTable string) (*SQLClient, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// One physical connection per handle; the pool, not database/sql, does
	// the pooling.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLClient{
		db:         db,
		driver:     driver,
		probeTable: probeTable,
	}, nil
}

// Query runs a read request against the database
func (c *SQLClient) Query(ctx context.Context, req QueryRequest) (*Result, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	cols := "*"
	if len(req.Columns) > 0 {
		cols = strings.Join(req.Columns, ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", cols, req.Table)
	if req.Limit > 0 {
		stmt = fmt.Sprintf("%s LIMIT %d", stmt, req.Limit)
	}

	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// Validate probes the configured probe table
func (c *SQLClient) Validate(ctx context.Context) error {
	stmt := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", c.probeTable)
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	return rows.Close()
}

// Close releases the underlying connection
func (c *SQLClient) Close() error {
	return c.db.Close()
}

// scanRows converts sql.Rows into the column-keyed row maps the REST
// backend produces, so callers see one shape regardless of backend
func scanRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result, rows.Err()
}

// SQLFactory creates SQLClient handles for one driver/DSN pair
type SQLFactory struct {
	backend    string
	driver     string
	dsn        string
	probeTable string
}

// Name identifies the backend kind
func (f *SQLFactory) Name() string {
	return f.backend
}

// New opens a fresh single-connection handle
func (f *SQLFactory) New(ctx context.Context) (Client, error) {
	return NewSQLClient(f.driver, f.dsn, f.probeTable)
}
