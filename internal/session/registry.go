// Package session tracks live sandbox sessions in-process. The registry
// owns the full lifecycle: it launches the backend on Create, reaps
// sessions that sit idle past their timeout and tears everything down on
// Close. Session state is ephemeral; nothing survives a restart.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kernelbox/kernelbox/internal/container"
	"github.com/kernelbox/kernelbox/internal/docker"
	"github.com/kernelbox/kernelbox/internal/kernel"
	"github.com/kernelbox/kernelbox/internal/metrics"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

const (
	DefaultMaxSessions = 16
	DefaultIdleTimeout = 300 * time.Second
)

// Backend is the per-session execution target.
type Backend interface {
	Execute(ctx context.Context, code string) (*kernel.Result, error)
	Close(ctx context.Context) error
}

// Starter launches the backend for a new session.
type Starter func(ctx context.Context, id string) (Backend, error)

// Options configures a Registry.
type Options struct {
	MaxSessions int
	IdleTimeout time.Duration
	Start       Starter
}

// Session is one tracked sandbox with a rolling idle timer.
type Session struct {
	id      string
	backend Backend
	created time.Time
	idle    time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gone  bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was started.
func (s *Session) CreatedAt() time.Time { return s.created }

// Execute runs code in the session and resets the idle timer.
func (s *Session) Execute(ctx context.Context, code string) (*kernel.Result, error) {
	s.touch()
	start := time.Now()
	result, err := s.backend.Execute(ctx, code)
	s.touch()
	if err != nil {
		outcome := "error"
		if errdefs.IsTimeout(err) {
			outcome = "timeout"
		}
		metrics.ExecutionsTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}
	metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
	metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil && !s.gone {
		s.timer.Reset(s.idle)
	}
}

// Registry tracks sessions by ID and enforces the session cap.
type Registry struct {
	maxSessions int
	idleTimeout time.Duration
	start       Starter

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates a registry. Options left zero take defaults; a
// nil Starter launches execution containers with default options.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Start == nil {
		client, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		opts.Start = ContainerStarter(client, container.Options{}, 0)
	}
	return &Registry{
		maxSessions: opts.MaxSessions,
		idleTimeout: opts.IdleTimeout,
		start:       opts.Start,
		sessions:    make(map[string]*Session),
	}, nil
}

// Create launches a new session. It fails with ErrState when the
// registry is closed or at capacity.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: registry is closed", errdefs.ErrState)
	}
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: session limit %d reached", errdefs.ErrState, r.maxSessions)
	}
	r.mu.Unlock()

	id := uuid.New().String()[:8]
	begin := time.Now()

	backend, err := r.start(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to start session %s: %w", id, err)
	}

	s := &Session{
		id:      id,
		backend: backend,
		created: begin,
		idle:    r.idleTimeout,
	}
	s.timer = time.AfterFunc(r.idleTimeout, func() {
		r.reap(s)
	})

	r.mu.Lock()
	if r.closed || len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		s.stopTimer()
		_ = backend.Close(context.Background())
		return nil, fmt.Errorf("%w: registry no longer accepting sessions", errdefs.ErrState)
	}
	r.sessions[id] = s
	r.mu.Unlock()

	metrics.SessionsActive.Inc()
	metrics.SessionCreateDuration.Observe(time.Since(begin).Seconds())
	return s, nil
}

// Get returns a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", errdefs.ErrNotFound, id)
	}
	return s, nil
}

// List returns the IDs of all live sessions.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Destroy tears a session down and removes it from the registry.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", errdefs.ErrNotFound, id)
	}
	return r.teardown(ctx, s)
}

// Close destroys every session and rejects further Create calls.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := r.teardown(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) reap(s *Session) {
	r.mu.Lock()
	if _, ok := r.sessions[s.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.id)
	r.mu.Unlock()

	slog.Info("reaping idle session", "id", s.id)
	if err := r.teardown(context.Background(), s); err != nil {
		slog.Warn("idle session teardown failed", "id", s.id, "error", err)
	}
}

func (r *Registry) teardown(ctx context.Context, s *Session) error {
	s.stopTimer()
	err := s.backend.Close(ctx)
	metrics.SessionsActive.Dec()
	return err
}

func (s *Session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
