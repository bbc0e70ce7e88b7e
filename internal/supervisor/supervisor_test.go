package supervisor_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/jrsteele09/go-strava-broker/internal/supervisor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type mockHTTPServer struct {
	listenErr error
	started   chan struct{}
	stop      chan struct{}
	shutdowns atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.started <- struct{}{}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stop
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stop)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	server := newMockHTTPServer()
	svc := supervisor.NewHTTPService(server, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.started
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	require.Equal(t, int32(1), server.shutdowns.Load())
}

func TestHTTPServiceListenFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.listenErr = stderrors.New("address already in use")
	svc := supervisor.NewHTTPService(server, time.Second, zerolog.Nop())

	err := svc.Serve(context.Background())
	require.ErrorContains(t, err, "address already in use")
	require.Zero(t, server.shutdowns.Load())
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) RefreshAll(context.Context) (broker.RefreshReport, error) {
	c.calls.Add(1)
	return broker.RefreshReport{RunID: "run", Total: 1, Refreshed: 1}, c.err
}

func TestRefreshServiceTicks(t *testing.T) {
	refresher := &countingRefresher{}
	logs := &syncBuffer{}
	svc := supervisor.NewRefreshService(refresher, 10*time.Millisecond, zerolog.New(logs))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Contains(t, logs.String(), "scheduled refresh finished")
}

func TestRefreshServiceSurvivesFailures(t *testing.T) {
	refresher := &countingRefresher{err: stderrors.New("store unavailable")}
	logs := &syncBuffer{}
	svc := supervisor.NewRefreshService(refresher, 10*time.Millisecond, zerolog.New(logs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Serve(ctx) }()

	require.Eventually(t, func() bool { return refresher.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.Contains(t, logs.String(), "scheduled refresh failed")
}

func TestRefreshServiceDisabled(t *testing.T) {
	refresher := &countingRefresher{}
	svc := supervisor.NewRefreshService(refresher, 0, zerolog.Nop())

	err := svc.Serve(context.Background())
	require.ErrorIs(t, err, suture.ErrDoNotRestart)
	require.Zero(t, refresher.calls.Load())
}

type flakyService struct {
	runs atomic.Int32
}

func (f *flakyService) Serve(ctx context.Context) error {
	if f.runs.Add(1) == 1 {
		return stderrors.New("first run fails")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakyService) String() string { return "flaky" }

func TestTreeRestartsAndLogs(t *testing.T) {
	logs := &syncBuffer{}
	tree := supervisor.NewTree("test", zerolog.New(logs), supervisor.TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	require.Equal(t, 5.0, tree.Config().FailureThreshold)

	svc := &flakyService{}
	tree.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return svc.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-errCh

	require.Contains(t, logs.String(), "first run fails")
}
