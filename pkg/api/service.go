package api

import (
	"context"

	"cdpoauth/internal/logger"
	"cdpoauth/internal/service"
	"cdpoauth/pkg/domain"
)

// Service 服务接口
type Service interface {
	// StartSession 附加浏览器并创建处于认证中的会话
	StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionID, error)

	// Open 在内嵌浏览器中加载认证入口
	Open(ctx context.Context, id domain.SessionID) error

	// StopSession 停止会话
	StopSession(id domain.SessionID) error

	// ListTargets 列出目标
	ListTargets(ctx context.Context, id domain.SessionID) ([]domain.TargetInfo, error)

	// SetAuthenticating 切换认证状态
	SetAuthenticating(id domain.SessionID, on bool) error

	// Cancel 用户取消认证
	Cancel(id domain.SessionID) error

	// Succeed 由布局主动报告成功
	Succeed(id domain.SessionID) error

	// Fail 由布局主动报告失败
	Fail(id domain.SessionID, message string, detail any) error

	// SetLoading 设置加载状态
	SetLoading(id domain.SessionID, v bool) error

	// State 获取会话状态快照
	State(id domain.SessionID) (domain.SessionState, error)

	// History 获取会话事件历史
	History(ctx context.Context, id domain.SessionID) ([]domain.Event, error)

	// SubscribeEvents 订阅事件
	SubscribeEvents(id domain.SessionID) (<-chan domain.Event, error)
}

// Recorder 事件历史存储
type Recorder = service.Recorder

// NewService 创建并返回服务接口实现，rec 为空时不记录历史
func NewService(l logger.Logger, rec Recorder) Service {
	return service.New(l, service.Options{Recorder: rec})
}
