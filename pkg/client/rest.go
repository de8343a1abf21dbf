package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const restRequestTimeout = 10 * time.Second

// RestClient is a Supabase PostgREST handle. Each instance carries its own
// http.Client with no cookie jar: handles are stateless and interchangeable,
// the pool owns their lifecycle.
type RestClient struct {
	baseURL    string
	serviceKey string
	schema     string
	probeTable string
	httpClient *http.Client
}

// NewRestClient creates a PostgREST handle for the given project
func NewRestClient(baseURL, serviceKey, schema, probeTable string) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		schema:     schema,
		probeTable: probeTable,
		httpClient: &http.Client{
			Timeout: restRequestTimeout,
		},
	}
}

// Query runs a read request through the PostgREST endpoint
func (c *RestClient) Query(ctx context.Context, req QueryRequest) (*Result, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode response for table %s: %w", req.Table, err)
	}

	return &Result{Rows: rows}, nil
}

// Validate probes the configured probe table with limit=1
func (c *RestClient) Validate(ctx context.Context) error {
	_, err := c.get(ctx, QueryRequest{Table: c.probeTable, Limit: 1})
	return err
}

// Close is a no-op: REST handles hold no persistent transport state
func (c *RestClient) Close() error {
	return nil
}

// get performs the HTTP round-trip shared by Query and Validate
func (c *RestClient) get(ctx context.Context, req QueryRequest) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(req.Table))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	query := httpReq.URL.Query()
	if len(req.Columns) > 0 {
		query.Set("select", strings.Join(req.Columns, ","))
	} else {
		query.Set("select", "*")
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	httpReq.URL.RawQuery = query.Encode()

	httpReq.Header.Set("apikey", c.serviceKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.serviceKey)
	httpReq.Header.Set("Accept", "application/json")
	if c.schema != "" {
		httpReq.Header.Set("Accept-Profile", c.schema)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("postgrest request for %s failed: status %d: %s",
			req.Table, resp.StatusCode, truncateBody(body))
	}

	return body, nil
}

// truncateBody keeps error payloads readable in logs
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// RestFactory creates RestClient handles
type RestFactory struct {
	cfg restSettings
}

type restSettings struct {
	URL        string
	ServiceKey string
	Schema     string
	ProbeTable string
}

// Name identifies the backend kind
func (f *RestFactory) Name() string {
	return "rest"
}

// New builds a fresh PostgREST handle
func (f *RestFactory) New(ctx context.Context) (Client, error) {
	if f.cfg.URL == "" {
		return nil, fmt.Errorf("rest backend requires a project URL")
	}
	return NewRestClient(f.cfg.URL, f.cfg.ServiceKey, f.cfg.Schema, f.cfg.ProbeTable), nil
}
