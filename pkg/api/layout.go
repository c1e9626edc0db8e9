package api

import (
	"context"

	"cdpoauth/pkg/domain"
)

// Layout 认证界面的呈现方式，核心逻辑不关心具体布局
type Layout interface {
	Render(ctx context.Context, props RenderProps) error
}

// RenderProps 注入布局的能力
type RenderProps struct {
	// Open 在内嵌浏览器中加载认证入口
	Open func(ctx context.Context) error
	// OnSuccess 主动报告成功
	OnSuccess func()
	// OnFailure 主动报告失败，取消时传入 "User cancelled"
	OnFailure func(message string, detail any)
	// SetLoading 设置加载状态
	SetLoading   func(bool)
	LoadingColor string
	// Events 会话事件，会话结束时关闭
	Events <-chan domain.Event
}

// SessionProps 以服务中的会话构造布局属性
func SessionProps(svc Service, id domain.SessionID, color string) (RenderProps, error) {
	events, err := svc.SubscribeEvents(id)
	if err != nil {
		return RenderProps{}, err
	}
	return RenderProps{
		Open:         func(ctx context.Context) error { return svc.Open(ctx, id) },
		OnSuccess:    func() { _ = svc.Succeed(id) },
		OnFailure:    func(msg string, detail any) { _ = svc.Fail(id, msg, detail) },
		SetLoading:   func(v bool) { _ = svc.SetLoading(id, v) },
		LoadingColor: color,
		Events:       events,
	}, nil
}
