package browser

import (
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"

	"cdpoauth/pkg/domain"
)

// 浏览器主动中止的加载不算加载错误
const errTextAborted = "net::ERR_ABORTED"

// IsNavigation 判断拦截事件是否为文档导航
func IsNavigation(ev *fetch.RequestPausedReply) bool {
	return ev.ResponseStatusCode == nil && ev.ResourceType == network.ResourceTypeDocument
}

// ToNavigationAttempt 将 CDP 拦截事件转换为导航尝试
func ToNavigationAttempt(ev *fetch.RequestPausedReply) domain.NavigationAttempt {
	return domain.NavigationAttempt{URL: ev.Request.URL}
}

// MainFrameRequestID 返回主框架文档请求在网络域中的 ID
func MainFrameRequestID(ev *fetch.RequestPausedReply, mainFrame page.FrameID) (string, bool) {
	if mainFrame == "" || ev.FrameID != mainFrame || ev.NetworkID == nil {
		return "", false
	}
	return string(*ev.NetworkID), true
}

// ToLoadError 将文档加载失败事件转换为加载错误，非文档或被中止的加载返回 false
func ToLoadError(ev *network.LoadingFailedReply) (domain.LoadError, bool) {
	if ev.Type != network.ResourceTypeDocument {
		return domain.LoadError{}, false
	}
	if (ev.Canceled != nil && *ev.Canceled) || ev.ErrorText == errTextAborted {
		return domain.LoadError{}, false
	}
	detail := map[string]any{
		"requestId": string(ev.RequestID),
		"type":      string(ev.Type),
		"errorText": ev.ErrorText,
	}
	return domain.LoadError{Description: ev.ErrorText, Detail: detail}, true
}

// ToTargetInfo 将 DevTools 目标转换为领域模型
func ToTargetInfo(t *devtool.Target, current domain.TargetID) domain.TargetInfo {
	return domain.TargetInfo{
		ID:        domain.TargetID(t.ID),
		Type:      string(t.Type),
		URL:       t.URL,
		Title:     t.Title,
		IsCurrent: current != "" && domain.TargetID(t.ID) == current,
	}
}
