package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelbox/kernelbox/internal/kernel"
	"github.com/kernelbox/kernelbox/internal/metrics"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

type fakeBackend struct {
	id       string
	executed []string
	execErr  error
	closed   atomic.Bool
}

func (b *fakeBackend) Execute(ctx context.Context, code string) (*kernel.Result, error) {
	if b.execErr != nil {
		return nil, b.execErr
	}
	b.executed = append(b.executed, code)
	return &kernel.Result{Text: "ran " + code, Images: [][]byte{}}, nil
}

func (b *fakeBackend) Close(ctx context.Context) error {
	b.closed.Store(true)
	return nil
}

// fakeStarter records every backend it hands out.
type fakeStarter struct {
	backends []*fakeBackend
	startErr error
}

func (f *fakeStarter) start(ctx context.Context, id string) (Backend, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	b := &fakeBackend{id: id}
	f.backends = append(f.backends, b)
	return b, nil
}

func newTestRegistry(t *testing.T, opts Options, starter *fakeStarter) *Registry {
	t.Helper()
	opts.Start = starter.start
	r, err := NewRegistry(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestRegistry_CreateGetDestroy(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{}, starter)
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.Destroy(ctx, s.ID()))
	assert.True(t, starter.backends[0].closed.Load())

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{}, starter)
	ctx := context.Background()

	a, err := r.Create(ctx)
	require.NoError(t, err)
	b, err := r.Create(ctx)
	require.NoError(t, err)

	require.NotEqual(t, a.ID(), b.ID())
	require.Len(t, starter.backends, 2, "each session gets its own backend")

	_, err = a.Execute(ctx, "x = 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"x = 1"}, starter.backends[0].executed)
	assert.Empty(t, starter.backends[1].executed)
}

func TestRegistry_MaxSessions(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{MaxSessions: 1}, starter)
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)

	_, err = r.Create(ctx)
	assert.ErrorIs(t, err, errdefs.ErrState)
}

func TestRegistry_DestroyUnknown(t *testing.T) {
	r := newTestRegistry(t, Options{}, &fakeStarter{})
	err := r.Destroy(context.Background(), "nope")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestRegistry_StartFailure(t *testing.T) {
	starter := &fakeStarter{startErr: errors.New("image pull failed")}
	r := newTestRegistry(t, Options{}, starter)

	_, err := r.Create(context.Background())
	require.Error(t, err)
	assert.Empty(t, r.List())
}

func TestRegistry_CloseTearsDownEverything(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{}, starter)
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)
	_, err = r.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx))
	for i, b := range starter.backends {
		assert.True(t, b.closed.Load(), "backend %d", i)
	}

	_, err = r.Create(ctx)
	assert.ErrorIs(t, err, errdefs.ErrState)
}

func TestSession_ExecuteRecordsTimeoutOutcome(t *testing.T) {
	before := testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("timeout"))

	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{}, starter)
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	starter.backends[0].execErr = &errdefs.TimeoutError{Op: "execute", Timeout: time.Second}
	_, err = s.Execute(context.Background(), "time.sleep(600)")
	require.Error(t, err)

	after := testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("timeout"))
	assert.Equal(t, before+1, after)
}

func TestRegistry_IdleReap(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{IdleTimeout: 30 * time.Millisecond}, starter)

	s, err := r.Create(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return starter.backends[0].closed.Load()
	}, 2*time.Second, 10*time.Millisecond)

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestRegistry_ExecuteResetsIdleTimer(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRegistry(t, Options{IdleTimeout: 150 * time.Millisecond}, starter)
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)

	// Keep the session busy past several idle windows.
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		_, err := s.Execute(ctx, "print(1)")
		require.NoError(t, err)
	}

	_, err = r.Get(s.ID())
	assert.NoError(t, err, "active session must not be reaped")
}
