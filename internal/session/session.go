package session

import (
	"context"
	"sync"

	"github.com/mafredri/cdp"

	"cdpoauth/internal/browser"
	"cdpoauth/internal/interceptor"
	"cdpoauth/pkg/domain"
)

// Surface 会话使用的内嵌浏览器
type Surface interface {
	AttachTarget(ctx context.Context, target domain.TargetID) error
	ListTargets(ctx context.Context) ([]domain.TargetInfo, error)
	Open(ctx context.Context, source string, h browser.Handlers) error
	Network() cdp.Network
	Detach() error
}

// Session 一次认证会话持有的运行时对象
type Session struct {
	ID      domain.SessionID
	Config  domain.SessionConfig
	Surface Surface
	Ctrl    *interceptor.Controller

	// Events 控制器事件的原始通道，由服务层转发
	Events chan domain.Event

	mu      sync.Mutex
	subs    []chan domain.Event
	onClose []func()
	closed  bool
}

// New 创建会话
func New(id domain.SessionID, cfg domain.SessionConfig) *Session {
	return &Session{
		ID:     id,
		Config: cfg,
		Events: make(chan domain.Event, 128),
	}
}

// Subscribe 注册一个事件订阅者，会话关闭后返回已关闭的通道
func (s *Session) Subscribe(buf int) <-chan domain.Event {
	ch := make(chan domain.Event, buf)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Publish 向所有订阅者非阻塞发送事件，满的订阅者丢弃该事件
func (s *Session) Publish(evt domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// OnClose 注册关闭钩子，在订阅通道关闭前按注册顺序执行
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Close 执行关闭钩子并关闭全部订阅通道，可重复调用
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	// 钩子可能仍在发布事件，不能持锁执行
	for _, fn := range hooks {
		fn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}
