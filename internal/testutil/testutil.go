package testutil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/kgruber/quizbowl-buzzer/internal/api"
	"github.com/kgruber/quizbowl-buzzer/internal/config"
	"github.com/kgruber/quizbowl-buzzer/internal/domain"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
	"github.com/kgruber/quizbowl-buzzer/internal/websocket"
)

// TestServer wires a registry, hub, and router behind an httptest server.
type TestServer struct {
	t        *testing.T
	Server   *httptest.Server
	Registry *game.Registry
	Hub      *websocket.Hub
	Config   *config.Config
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	cfg := &config.Config{
		Port:          "0",
		Environment:   "test",
		PublicURL:     "http://buzzer.test",
		TossupSeconds: domain.DefaultTossupSeconds,
		BonusSeconds:  domain.DefaultBonusSeconds,
	}

	registry := game.NewRegistry(clockwork.NewRealClock(), cfg.Settings())
	hub := websocket.NewHub(registry)
	router := api.NewRouter(registry, hub, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestServer{
		t:        t,
		Server:   srv,
		Registry: registry,
		Hub:      hub,
		Config:   cfg,
	}
}

// WebSocketURL returns the ws:// endpoint of the test server.
func (ts *TestServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws"
}

// URL builds an absolute URL for an HTTP endpoint on the test server.
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}
