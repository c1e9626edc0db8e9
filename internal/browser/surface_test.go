package browser

import (
	"context"
	"testing"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpoauth/internal/logger"
	"cdpoauth/pkg/domain"
)

type fakeFetch struct {
	cdp.Fetch
	continued []fetch.RequestID
	fulfilled []*fetch.FulfillRequestArgs
}

func (f *fakeFetch) ContinueRequest(_ context.Context, args *fetch.ContinueRequestArgs) error {
	f.continued = append(f.continued, args.RequestID)
	return nil
}

func (f *fakeFetch) FulfillRequest(_ context.Context, args *fetch.FulfillRequestArgs) error {
	f.fulfilled = append(f.fulfilled, args)
	return nil
}

func newTestSurface(ff *fakeFetch, h Handlers) *Surface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Surface{
		processTimeout: time.Second,
		log:            logger.NewNop(),
		client:         &cdp.Client{Fetch: ff},
		ctx:            ctx,
		cancel:         cancel,
		handlers:       h,
	}
}

func paused(id, url string, rt network.ResourceType) *fetch.RequestPausedReply {
	return &fetch.RequestPausedReply{
		RequestID:    fetch.RequestID(id),
		Request:      network.Request{URL: url},
		ResourceType: rt,
	}
}

func TestHandlePaused(t *testing.T) {
	var seen []string
	ff := &fakeFetch{}
	s := newTestSurface(ff, Handlers{
		Navigate: func(a domain.NavigationAttempt) bool {
			seen = append(seen, a.URL)
			return a.URL != "http://localhost/cb?key=k&secret=s"
		},
	})
	defer s.cancel()

	s.handlePaused(paused("1", "https://example.com/login", network.ResourceTypeDocument))
	s.handlePaused(paused("2", "https://example.com/app.js", network.ResourceTypeScript))
	s.handlePaused(paused("3", "http://localhost/cb?key=k&secret=s", network.ResourceTypeDocument))

	assert.Equal(t, []string{"https://example.com/login", "http://localhost/cb?key=k&secret=s"}, seen)
	assert.Equal(t, []fetch.RequestID{"1", "2"}, ff.continued)
	require.Len(t, ff.fulfilled, 1)
	assert.Equal(t, fetch.RequestID("3"), ff.fulfilled[0].RequestID)
	assert.Equal(t, 204, ff.fulfilled[0].ResponseCode)
}

func TestHandlePaused_ResponseStageContinues(t *testing.T) {
	ff := &fakeFetch{}
	called := false
	s := newTestSurface(ff, Handlers{Navigate: func(domain.NavigationAttempt) bool { called = true; return false }})
	defer s.cancel()

	ev := paused("9", "https://example.com", network.ResourceTypeDocument)
	code := 302
	ev.ResponseStatusCode = &code
	s.handlePaused(ev)

	assert.False(t, called)
	assert.Equal(t, []fetch.RequestID{"9"}, ff.continued)
}

func documentPaused(id, networkID string, frame page.FrameID, url string) *fetch.RequestPausedReply {
	ev := paused(id, url, network.ResourceTypeDocument)
	nid := network.RequestID(networkID)
	ev.NetworkID = &nid
	ev.FrameID = frame
	return ev
}

func TestHandleFailed_MainFrameOnly(t *testing.T) {
	var reported []domain.LoadError
	s := newTestSurface(&fakeFetch{}, Handlers{
		Navigate:  func(domain.NavigationAttempt) bool { return true },
		LoadError: func(le domain.LoadError) { reported = append(reported, le) },
	})
	defer s.cancel()
	s.setMainFrame("main")

	s.handlePaused(documentPaused("1", "n-main", "main", "https://provider.example.com/login"))
	s.handlePaused(documentPaused("2", "n-ad", "child", "https://ads.example.net/frame"))

	s.handleFailed(&network.LoadingFailedReply{RequestID: "n-ad", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_BLOCKED_BY_CLIENT"})
	assert.Empty(t, reported)

	s.handleFailed(&network.LoadingFailedReply{RequestID: "n-main", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_NAME_NOT_RESOLVED"})
	require.Len(t, reported, 1)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", reported[0].Description)

	// 同一请求的重复失败事件只上报一次
	s.handleFailed(&network.LoadingFailedReply{RequestID: "n-main", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_NAME_NOT_RESOLVED"})
	assert.Len(t, reported, 1)
}

func TestHandleFailed_BlockedNavigationIsNotTracked(t *testing.T) {
	called := false
	s := newTestSurface(&fakeFetch{}, Handlers{
		Navigate:  func(domain.NavigationAttempt) bool { return false },
		LoadError: func(domain.LoadError) { called = true },
	})
	defer s.cancel()
	s.setMainFrame("main")

	s.handlePaused(documentPaused("1", "n1", "main", "http://localhost/auth/oauth2/success?key=k&secret=s"))
	s.handleFailed(&network.LoadingFailedReply{RequestID: "n1", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_FAILED"})
	assert.False(t, called)
}

func TestMainFrameRequestID(t *testing.T) {
	id, ok := MainFrameRequestID(documentPaused("1", "n1", "main", "https://a"), "main")
	assert.True(t, ok)
	assert.Equal(t, "n1", id)

	_, ok = MainFrameRequestID(documentPaused("1", "n1", "child", "https://a"), "main")
	assert.False(t, ok)
	_, ok = MainFrameRequestID(paused("1", "https://a", network.ResourceTypeDocument), "main")
	assert.False(t, ok)
	_, ok = MainFrameRequestID(documentPaused("1", "n1", "main", "https://a"), "")
	assert.False(t, ok)
}

func TestToLoadError(t *testing.T) {
	canceled := true
	cases := []struct {
		name string
		ev   *network.LoadingFailedReply
		ok   bool
	}{
		{"document failure", &network.LoadingFailedReply{RequestID: "r1", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_NAME_NOT_RESOLVED"}, true},
		{"subresource failure", &network.LoadingFailedReply{RequestID: "r2", Type: network.ResourceTypeImage, ErrorText: "net::ERR_FAILED"}, false},
		{"aborted", &network.LoadingFailedReply{RequestID: "r3", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_ABORTED"}, false},
		{"canceled", &network.LoadingFailedReply{RequestID: "r4", Type: network.ResourceTypeDocument, ErrorText: "net::ERR_FAILED", Canceled: &canceled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			le, ok := ToLoadError(tc.ev)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.ev.ErrorText, le.Description)
				assert.Equal(t, string(tc.ev.RequestID), le.Detail.(map[string]any)["requestId"])
			}
		})
	}
}

func TestToTargetInfo(t *testing.T) {
	tg := &devtool.Target{ID: "T1", Type: devtool.Page, URL: "https://example.com", Title: "Example"}

	info := ToTargetInfo(tg, "T1")
	assert.Equal(t, domain.TargetInfo{ID: "T1", Type: "page", URL: "https://example.com", Title: "Example", IsCurrent: true}, info)
	assert.False(t, ToTargetInfo(tg, "").IsCurrent)
}

func TestOpenRequiresAttach(t *testing.T) {
	s := New("http://127.0.0.1:9222", 0, nil)
	assert.ErrorIs(t, s.Open(context.Background(), "https://example.com", Handlers{}), ErrNotAttached)
	assert.Nil(t, s.Network())
	assert.NoError(t, s.Detach())
}
