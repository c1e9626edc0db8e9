package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"cdpoauth/pkg/domain"
)

func TestDecode(t *testing.T) {
	t.Run("navigation", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"navigation","url":"http://localhost/x?key=a&secret=b","navigationType":"other"}`))
		require.NoError(t, err)
		assert.Equal(t, KindNavigation, ev.Kind)
		assert.Equal(t, "http://localhost/x?key=a&secret=b", ev.Navigation.URL)
	})

	t.Run("navigation with nested request", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"navigation","request":{"url":"https://example.com"}}`))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", ev.Navigation.URL)
	})

	t.Run("navigation without url", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"navigation"}`))
		require.NoError(t, err)
		assert.Empty(t, ev.Navigation.URL)
	})

	t.Run("navigation with non string url", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"navigation","url":42}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("load error", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"loadError","description":"net::ERR_FAILED","detail":{"code":-2,"domain":"WebKit"}}`))
		require.NoError(t, err)
		assert.Equal(t, "net::ERR_FAILED", ev.LoadError.Description)
		assert.Equal(t, map[string]any{"code": float64(-2), "domain": "WebKit"}, ev.LoadError.Detail)
	})

	t.Run("load error with errorText", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"loadError","errorText":"net::ERR_ABORTED"}`))
		require.NoError(t, err)
		assert.Equal(t, "net::ERR_ABORTED", ev.LoadError.Description)
		assert.Nil(t, ev.LoadError.Detail)
	})

	t.Run("load error without description", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"loadError"}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("authenticating", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"authenticating","value":true}`))
		require.NoError(t, err)
		assert.True(t, ev.Authenticating)

		_, err = Decode([]byte(`{"type":"authenticating","value":"yes"}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("cancel", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"cancel"}`))
		require.NoError(t, err)
		assert.Equal(t, KindCancel, ev.Kind)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, p := range []string{`{`, `{"url":"x"}`, `{"type":"reload"}`, `{"type":1}`} {
			_, err := Decode([]byte(p))
			assert.ErrorIs(t, err, ErrInvalidPayload, p)
		}
	})
}

func TestEncodeEvent(t *testing.T) {
	out, err := EncodeEvent(domain.Event{Type: domain.EventFailure, Session: "s1", Message: "Cookie not set", Timestamp: 42})
	require.NoError(t, err)

	assert.Equal(t, "failure", gjson.GetBytes(out, "type").String())
	assert.Equal(t, "s1", gjson.GetBytes(out, "session").String())
	assert.Equal(t, "Cookie not set", gjson.GetBytes(out, "message").String())
	assert.False(t, gjson.GetBytes(out, "url").Exists())
	assert.Equal(t, int64(42), gjson.GetBytes(out, "timestamp").Int())
}

func TestEncodeState(t *testing.T) {
	out, err := EncodeState(domain.SessionState{
		Phase:   domain.PhaseResolved,
		Outcome: &domain.Outcome{Message: "User cancelled"},
	})
	require.NoError(t, err)

	assert.Equal(t, "resolved", gjson.GetBytes(out, "phase").String())
	assert.False(t, gjson.GetBytes(out, "outcome.success").Bool())
	assert.Equal(t, "User cancelled", gjson.GetBytes(out, "outcome.message").String())
	assert.False(t, gjson.GetBytes(out, "source").Exists())
}
