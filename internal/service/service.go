package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cdpoauth/internal/authclient"
	"cdpoauth/internal/bridge"
	"cdpoauth/internal/browser"
	"cdpoauth/internal/ctxkeys"
	"cdpoauth/internal/interceptor"
	"cdpoauth/internal/logger"
	"cdpoauth/internal/session"
	"cdpoauth/pkg/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoHistory       = errors.New("history not recorded")
)

// Recorder 事件历史存储
type Recorder interface {
	Record(ctx context.Context, ev domain.Event) error
	List(ctx context.Context, id domain.SessionID) ([]domain.Event, error)
}

// Options 服务依赖，为空的工厂使用默认实现
type Options struct {
	Recorder   Recorder
	NewSurface func(cfg domain.SessionConfig, l logger.Logger) session.Surface
	NewClient  func(cfg domain.SessionConfig) (authclient.Client, error)
}

// Service 认证会话服务
type Service struct {
	mgr  *session.Manager
	log  logger.Logger
	opts Options
}

// New 创建服务
func New(l logger.Logger, opts Options) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.NewSurface == nil {
		opts.NewSurface = func(cfg domain.SessionConfig, l logger.Logger) session.Surface {
			return browser.New(cfg.DevToolsURL, cfg.ProcessTimeoutMS, l)
		}
	}
	if opts.NewClient == nil {
		opts.NewClient = func(cfg domain.SessionConfig) (authclient.Client, error) {
			return authclient.NewAppwrite(cfg.Endpoint, cfg.Project)
		}
	}
	return &Service{
		mgr:  session.NewManager(l),
		log:  l,
		opts: opts,
	}
}

// StartSession 附加浏览器并创建处于认证中的会话
func (svc *Service) StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionID, error) {
	client, err := svc.opts.NewClient(cfg)
	if err != nil {
		return "", fmt.Errorf("auth client: %w", err)
	}

	id := domain.SessionID(uuid.NewString())
	s, ok := svc.mgr.Create(id, cfg)
	if !ok {
		return "", fmt.Errorf("session %s already exists", id)
	}
	log := svc.log.With("sessionID", string(id))

	s.Surface = svc.opts.NewSurface(cfg, log)
	if err := s.Surface.AttachTarget(ctx, cfg.Target); err != nil {
		svc.mgr.Delete(id)
		return "", fmt.Errorf("attach target: %w", err)
	}

	s.Ctrl, err = interceptor.New(interceptor.Options{
		Session:    id,
		Request:    cfg.Request,
		Client:     client,
		Bridge:     bridge.NewCDP(s.Surface.Network(), log),
		CookieData: cfg.CookieData,
		Events:     s.Events,
		Logger:     log,
	})
	if err != nil {
		_ = s.Surface.Detach()
		svc.mgr.Delete(id)
		return "", err
	}

	svc.pump(s)
	if err := s.Ctrl.SetAuthenticating(true); err != nil {
		_ = svc.StopSession(id)
		return "", err
	}
	return id, nil
}

// pump 将控制器事件写入历史并分发给订阅者
func (svc *Service) pump(s *session.Session) {
	stop := make(chan struct{})
	done := make(chan struct{})
	ctx := context.WithValue(context.Background(), ctxkeys.TraceIDKey{}, string(s.ID))

	handle := func(ev domain.Event) {
		if svc.opts.Recorder != nil {
			if err := svc.opts.Recorder.Record(ctx, ev); err != nil {
				svc.log.Err(err, "记录事件失败", "sessionID", string(s.ID), "type", ev.Type)
			}
		}
		s.Publish(ev)
	}

	go func() {
		defer close(done)
		for {
			select {
			case ev := <-s.Events:
				handle(ev)
			case <-stop:
				for {
					select {
					case ev := <-s.Events:
						handle(ev)
					default:
						return
					}
				}
			}
		}
	}()

	s.OnClose(func() {
		close(stop)
		<-done
	})
}

// Open 在内嵌浏览器中加载认证入口
func (svc *Service) Open(ctx context.Context, id domain.SessionID) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	src := s.Ctrl.Snapshot().Source
	if src == "" {
		return fmt.Errorf("session %s is not authenticating", id)
	}
	return s.Surface.Open(ctx, src, browser.Handlers{
		Navigate:  s.Ctrl.ShouldStartLoad,
		LoadError: s.Ctrl.LoadError,
	})
}

// StopSession 断开浏览器，等待在途桥接调用结束后关闭订阅
func (svc *Service) StopSession(id domain.SessionID) error {
	s, ok := svc.mgr.Delete(id)
	if !ok {
		return ErrSessionNotFound
	}
	err := s.Surface.Detach()
	s.Ctrl.Wait()
	s.Close()
	return err
}

// ListTargets 列出会话浏览器中的页面目标
func (svc *Service) ListTargets(ctx context.Context, id domain.SessionID) ([]domain.TargetInfo, error) {
	s, err := svc.get(id)
	if err != nil {
		return nil, err
	}
	return s.Surface.ListTargets(ctx)
}

func (svc *Service) SetAuthenticating(id domain.SessionID, on bool) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	return s.Ctrl.SetAuthenticating(on)
}

func (svc *Service) Cancel(id domain.SessionID) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	s.Ctrl.Cancel()
	return nil
}

func (svc *Service) Succeed(id domain.SessionID) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	s.Ctrl.Succeed()
	return nil
}

func (svc *Service) Fail(id domain.SessionID, message string, detail any) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	s.Ctrl.Fail(message, detail)
	return nil
}

func (svc *Service) SetLoading(id domain.SessionID, v bool) error {
	s, err := svc.get(id)
	if err != nil {
		return err
	}
	s.Ctrl.SetLoading(v)
	return nil
}

// State 获取会话状态快照
func (svc *Service) State(id domain.SessionID) (domain.SessionState, error) {
	s, err := svc.get(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	return s.Ctrl.Snapshot(), nil
}

// History 获取会话事件历史，会话结束后仍可查询
func (svc *Service) History(ctx context.Context, id domain.SessionID) ([]domain.Event, error) {
	if svc.opts.Recorder == nil {
		return nil, ErrNoHistory
	}
	return svc.opts.Recorder.List(ctx, id)
}

// SubscribeEvents 订阅会话事件，会话停止时通道关闭
func (svc *Service) SubscribeEvents(id domain.SessionID) (<-chan domain.Event, error) {
	s, err := svc.get(id)
	if err != nil {
		return nil, err
	}
	return s.Subscribe(64), nil
}

func (svc *Service) get(id domain.SessionID) (*session.Session, error) {
	s, ok := svc.mgr.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}
