// Package embedded runs a Mission Control server in-process, for tools
// that want a local board without shelling out to the missionctl binary.
package embedded

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dehyl/missionctl/internal/auth"
	httpapi "github.com/dehyl/missionctl/internal/http"
	"github.com/dehyl/missionctl/internal/storage/sqlite"
	"github.com/dehyl/missionctl/internal/ws"
)

// Config configures the embedded server.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// If empty, defaults to ~/.missionctl/board.db
	DBPath string

	// Port is the HTTP port to listen on. If 0, defaults to 8765.
	Port int

	// Host is the host to bind to. If empty, defaults to 127.0.0.1.
	Host string

	// RequireAuth loads the YAML keyring and wraps the API in the bearer
	// middleware. Embedded servers usually bind to loopback and skip it.
	RequireAuth bool

	// HeartbeatGrace is how long an agent may stay silent before the
	// sweeper marks it offline. If 0, defaults to 5 minutes.
	HeartbeatGrace time.Duration
}

// Server is an in-process Mission Control instance.
type Server struct {
	cfg     Config
	store   *sqlite.Store
	hub     *ws.Hub
	sweeper *sqlite.Sweeper
	http    *http.Server
	started bool
	mu      sync.Mutex
}

// New creates an embedded server. Nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".missionctl", "board.db")
	}
	if cfg.Port == 0 {
		cfg.Port = 8765
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HeartbeatGrace == 0 {
		cfg.HeartbeatGrace = 5 * time.Minute
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var mw func(http.Handler) http.Handler
	if cfg.RequireAuth {
		keyring, err := auth.LoadKeyringFromEnv()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load auth: %w", err)
		}
		mw = auth.Middleware(keyring)
	}

	hub := ws.NewHub()
	svc := httpapi.NewService(store).WithBroadcaster(hub)
	router := httpapi.NewRouter(svc, hub.Handler(), nil, mw)

	return &Server{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		sweeper: sqlite.NewSweeper(store, hub, time.Minute, cfg.HeartbeatGrace),
		http: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: router,
		},
	}, nil
}

// Start begins serving in a goroutine and starts the agent sweeper.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.sweeper.Start(context.Background())

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't crash - the host app owns the lifecycle
			fmt.Fprintf(os.Stderr, "missionctl server error: %v\n", err)
		}
	}()

	// Wait a moment for the listener to come up
	time.Sleep(50 * time.Millisecond)
	return nil
}

// Stop shuts the server, sweeper, and store down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// URL returns the base URL for the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.http.Addr)
}

// Store exposes the underlying store for direct access.
func (s *Server) Store() *sqlite.Store {
	return s.store
}
