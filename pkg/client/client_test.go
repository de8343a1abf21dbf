package client

import (
	"errors"
	"testing"

	"supapool/pkg/config"
	apperrors "supapool/pkg/errors"
)

func TestIsMissingRelation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgrest code", errors.New(`status 404: {"code":"PGRST205"}`), true},
		{"postgres sqlstate", errors.New(`pq: relation "users" does not exist (SQLSTATE 42P01)`), true},
		{"mysql errno", errors.New(`Error 1146 (42S02): Table 'db.users' doesn't exist`), true},
		{"sqlite message", errors.New("no such table: users"), true},
		{"auth failure", errors.New("permission denied for table users"), false},
		{"network failure", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMissingRelation(tc.err); got != tc.want {
				t.Errorf("IsMissingRelation(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"users", "health_check", "_private", "Table2"}
	for _, s := range valid {
		if !validIdentifier(s) {
			t.Errorf("Expected %q to be valid", s)
		}
	}

	invalid := []string{"", "2fast", "users; drop", "a-b", "a.b", "col name"}
	for _, s := range invalid {
		if validIdentifier(s) {
			t.Errorf("Expected %q to be invalid", s)
		}
	}
}

func TestNewFactorySelectsBackend(t *testing.T) {
	cases := []struct {
		backendType string
		wantName    string
	}{
		{"rest", "rest"},
		{"", "rest"},
		{"postgres", "postgres"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
	}

	for _, tc := range cases {
		cfg := config.BackendConfig{Type: tc.backendType, DSN: "test-dsn"}
		f, err := NewFactory(cfg)
		if err != nil {
			t.Fatalf("NewFactory(%q) failed: %v", tc.backendType, err)
		}
		if f.Name() != tc.wantName {
			t.Errorf("NewFactory(%q).Name() = %q, want %q", tc.backendType, f.Name(), tc.wantName)
		}
	}
}

func TestNewFactoryRejectsUnknownBackend(t *testing.T) {
	_, err := NewFactory(config.BackendConfig{Type: "mongodb"})
	if !errors.Is(err, apperrors.ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestNewFactoryDefaultsProbeTable(t *testing.T) {
	f, err := NewFactory(config.BackendConfig{Type: "rest", URL: "https://example.supabase.co"})
	if err != nil {
		t.Fatalf("NewFactory failed: %v", err)
	}
	rf, ok := f.(*RestFactory)
	if !ok {
		t.Fatalf("Expected *RestFactory, got %T", f)
	}
	if rf.cfg.ProbeTable != "health_check" {
		t.Errorf("Expected default probe table health_check, got %q", rf.cfg.ProbeTable)
	}
}
