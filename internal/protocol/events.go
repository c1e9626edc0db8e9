// Package protocol 在边界处校验宿主投递的 JSON 事件，并将控制器事件编码为 JSON。
package protocol

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"cdpoauth/pkg/domain"
)

// 宿主事件类型
const (
	KindNavigation     = "navigation"
	KindLoadError      = "loadError"
	KindCancel         = "cancel"
	KindAuthenticating = "authenticating"
)

var ErrInvalidPayload = errors.New("invalid event payload")

// HostEvent 宿主投递的事件，仅保留核心依赖的字段
type HostEvent struct {
	Kind           string
	Navigation     domain.NavigationAttempt
	LoadError      domain.LoadError
	Authenticating bool
}

// Decode 解析并校验一条宿主事件
func Decode(payload []byte) (HostEvent, error) {
	if !gjson.ValidBytes(payload) {
		return HostEvent{}, fmt.Errorf("%w: malformed json", ErrInvalidPayload)
	}
	kind := gjson.GetBytes(payload, "type")
	if kind.Type != gjson.String {
		return HostEvent{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	ev := HostEvent{Kind: kind.String()}
	var err error
	switch ev.Kind {
	case KindNavigation:
		ev.Navigation, err = DecodeNavigation(payload)
	case KindLoadError:
		ev.LoadError, err = DecodeLoadError(payload)
	case KindAuthenticating:
		v := gjson.GetBytes(payload, "value")
		if !v.IsBool() {
			return HostEvent{}, fmt.Errorf("%w: value must be boolean", ErrInvalidPayload)
		}
		ev.Authenticating = v.Bool()
	case KindCancel:
	default:
		return HostEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, ev.Kind)
	}
	if err != nil {
		return HostEvent{}, err
	}
	return ev, nil
}

// DecodeNavigation 提取导航目标，兼容 {"url"} 与 {"request":{"url"}} 两种形态。
// 缺少 url 时返回空地址，由控制器阻止导航。
func DecodeNavigation(payload []byte) (domain.NavigationAttempt, error) {
	r := gjson.GetBytes(payload, "url")
	if !r.Exists() {
		r = gjson.GetBytes(payload, "request.url")
	}
	if !r.Exists() || r.Type == gjson.Null {
		return domain.NavigationAttempt{}, nil
	}
	if r.Type != gjson.String {
		return domain.NavigationAttempt{}, fmt.Errorf("%w: url must be a string", ErrInvalidPayload)
	}
	return domain.NavigationAttempt{URL: r.String()}, nil
}

// DecodeLoadError 提取加载错误描述与原始细节
func DecodeLoadError(payload []byte) (domain.LoadError, error) {
	desc := gjson.GetBytes(payload, "description")
	if !desc.Exists() {
		desc = gjson.GetBytes(payload, "errorText")
	}
	if desc.Type != gjson.String {
		return domain.LoadError{}, fmt.Errorf("%w: description must be a string", ErrInvalidPayload)
	}
	detail := gjson.GetBytes(payload, "detail")
	le := domain.LoadError{Description: desc.String()}
	if detail.Exists() {
		le.Detail = detail.Value()
	}
	return le, nil
}

// EncodeEvent 将控制器事件编码为 JSON
func EncodeEvent(ev domain.Event) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, v)
	}
	set("type", ev.Type)
	set("session", string(ev.Session))
	if ev.URL != "" {
		set("url", ev.URL)
	}
	if ev.Message != "" {
		set("message", ev.Message)
	}
	set("loading", ev.Loading)
	set("timestamp", ev.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return out, nil
}

// EncodeState 将状态快照编码为 JSON
func EncodeState(st domain.SessionState) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, v)
	}
	set("phase", st.Phase.String())
	set("loading", st.Loading)
	if st.Source != "" {
		set("source", st.Source)
	}
	if st.Outcome != nil {
		set("outcome.success", st.Outcome.Success)
		if st.Outcome.Message != "" {
			set("outcome.message", st.Outcome.Message)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return out, nil
}
