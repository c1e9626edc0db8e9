package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpoauth/internal/browser"
	"cdpoauth/internal/interceptor"
	"cdpoauth/internal/logger"
	"cdpoauth/internal/session"
	"cdpoauth/internal/storage"
	"cdpoauth/pkg/domain"
)

type fakeNetwork struct {
	cdp.Network
	mu      sync.Mutex
	origins []string
	success bool
}

func (f *fakeNetwork) SetCookie(_ context.Context, args *network.SetCookieArgs) (*network.SetCookieReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if args.URL != nil {
		f.origins = append(f.origins, *args.URL)
	}
	return &network.SetCookieReply{Success: f.success}, nil
}

type fakeSurface struct {
	net       *fakeNetwork
	attachErr error

	mu       sync.Mutex
	source   string
	handlers browser.Handlers
	detached bool
}

func (f *fakeSurface) AttachTarget(context.Context, domain.TargetID) error { return f.attachErr }

func (f *fakeSurface) ListTargets(context.Context) ([]domain.TargetInfo, error) {
	return []domain.TargetInfo{{ID: "T1", Type: "page", IsCurrent: true}}, nil
}

func (f *fakeSurface) Open(_ context.Context, source string, h browser.Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
	f.handlers = h
	return nil
}

func (f *fakeSurface) Network() cdp.Network { return f.net }

func (f *fakeSurface) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = true
	return nil
}

func testConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Endpoint: "https://auth.example.com/v1",
		Project:  "p1",
		Request:  domain.NewOAuthRequest("github"),
	}
}

func newTestService(t *testing.T, fs *fakeSurface) *Service {
	t.Helper()
	store, err := storage.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared", "test_", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(logger.NewNop(), Options{
		Recorder:   store,
		NewSurface: func(domain.SessionConfig, logger.Logger) session.Surface { return fs },
	})
}

func nextEvent(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func TestService_SuccessFlow(t *testing.T) {
	fs := &fakeSurface{net: &fakeNetwork{success: true}}
	svc := newTestService(t, fs)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, testConfig())
	require.NoError(t, err)

	events, err := svc.SubscribeEvents(id)
	require.NoError(t, err)

	require.NoError(t, svc.Open(ctx, id))
	assert.Contains(t, fs.source, "https://auth.example.com/v1/account/sessions/oauth2/github")

	st, err := svc.State(id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseLoading, st.Phase)

	assert.True(t, fs.handlers.Navigate(domain.NavigationAttempt{URL: "https://github.com/login"}))
	assert.False(t, fs.handlers.Navigate(domain.NavigationAttempt{URL: "http://localhost/auth/oauth2/success?key=k&secret=s"}))

	assert.Equal(t, domain.EventIntercepted, nextEvent(t, events).Type)
	assert.Equal(t, domain.EventSuccess, nextEvent(t, events).Type)

	st, err = svc.State(id)
	require.NoError(t, err)
	require.NotNil(t, st.Outcome)
	assert.True(t, st.Outcome.Success)
	assert.Equal(t, []string{"https://auth.example.com"}, fs.net.origins)

	require.NoError(t, svc.StopSession(id))
	assert.True(t, fs.detached)
	_, open := <-events
	assert.False(t, open)

	hist, err := svc.History(ctx, id)
	require.NoError(t, err)
	var types []string
	for _, ev := range hist {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{domain.EventAuthenticating, domain.EventIntercepted, domain.EventSuccess}, types)
	assert.Equal(t, "http://localhost/auth/oauth2/success", hist[1].URL)
}

func TestService_CookieRejected(t *testing.T) {
	fs := &fakeSurface{net: &fakeNetwork{success: false}}
	svc := newTestService(t, fs)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, testConfig())
	require.NoError(t, err)
	events, err := svc.SubscribeEvents(id)
	require.NoError(t, err)
	require.NoError(t, svc.Open(ctx, id))

	fs.handlers.Navigate(domain.NavigationAttempt{URL: "http://localhost/auth/oauth2/success?key=k&secret=s"})
	nextEvent(t, events)
	ev := nextEvent(t, events)
	assert.Equal(t, domain.EventFailure, ev.Type)
	assert.Equal(t, interceptor.MsgCookieNotSet, ev.Message)
	require.NoError(t, svc.StopSession(id))
}

func TestService_CancelAndLoadError(t *testing.T) {
	fs := &fakeSurface{net: &fakeNetwork{success: true}}
	svc := newTestService(t, fs)
	ctx := context.Background()

	id, err := svc.StartSession(ctx, testConfig())
	require.NoError(t, err)
	events, err := svc.SubscribeEvents(id)
	require.NoError(t, err)
	require.NoError(t, svc.Open(ctx, id))

	fs.handlers.LoadError(domain.LoadError{Description: "net::ERR_NAME_NOT_RESOLVED"})
	ev := nextEvent(t, events)
	assert.Equal(t, domain.EventFailure, ev.Type)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", ev.Message)

	require.NoError(t, svc.SetAuthenticating(id, false))
	assert.Equal(t, domain.EventIdle, nextEvent(t, events).Type)
	require.NoError(t, svc.SetAuthenticating(id, true))
	assert.Equal(t, domain.EventAuthenticating, nextEvent(t, events).Type)

	require.NoError(t, svc.Cancel(id))
	assert.Equal(t, domain.EventCancelled, nextEvent(t, events).Type)
	ev = nextEvent(t, events)
	assert.Equal(t, domain.EventFailure, ev.Type)
	assert.Equal(t, interceptor.MsgUserCancelled, ev.Message)

	targets, err := svc.ListTargets(ctx, id)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
	require.NoError(t, svc.StopSession(id))
}

func TestService_Errors(t *testing.T) {
	t.Run("attach failure", func(t *testing.T) {
		fs := &fakeSurface{net: &fakeNetwork{}, attachErr: errors.New("no browser")}
		svc := newTestService(t, fs)
		_, err := svc.StartSession(context.Background(), testConfig())
		assert.ErrorContains(t, err, "no browser")
		assert.Empty(t, svc.mgr.List())
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		svc := newTestService(t, &fakeSurface{net: &fakeNetwork{}})
		cfg := testConfig()
		cfg.Endpoint = "not a url"
		_, err := svc.StartSession(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("missing provider", func(t *testing.T) {
		fs := &fakeSurface{net: &fakeNetwork{}}
		svc := newTestService(t, fs)
		cfg := testConfig()
		cfg.Request.Provider = ""
		_, err := svc.StartSession(context.Background(), cfg)
		assert.ErrorIs(t, err, interceptor.ErrMissingProvider)
		assert.True(t, fs.detached)
		assert.Empty(t, svc.mgr.List())
	})

	t.Run("unknown session", func(t *testing.T) {
		svc := New(nil, Options{})
		assert.ErrorIs(t, svc.Cancel("nope"), ErrSessionNotFound)
		assert.ErrorIs(t, svc.StopSession("nope"), ErrSessionNotFound)
		_, err := svc.State("nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = svc.SubscribeEvents("nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = svc.History(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNoHistory)
	})
}
