package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicly/civicly/internal/config"
	"github.com/civicly/civicly/internal/logging"
)

func TestNewRequiresStoresOutsideDevelopment(t *testing.T) {
	if _, err := New(config.Config{AppEnv: "production"}, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected production server without postgres to fail")
	}
}

func TestNewDevelopmentServesHealth(t *testing.T) {
	srv, err := New(config.Config{AppName: "Civicly", AppEnv: "development", JWTSecret: "a", RefreshSecret: "b"}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
