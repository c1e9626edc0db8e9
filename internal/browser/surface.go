// Package browser 通过 DevTools 协议把一个浏览器页面目标作为内嵌浏览器使用：
// 拦截文档导航并交给处理函数裁决，上报文档加载失败，提供网络域给 Cookie 桥接。
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"
	"golang.org/x/sync/errgroup"

	"cdpoauth/internal/logger"
	"cdpoauth/pkg/domain"
)

var (
	ErrNotAttached = errors.New("not attached")
	ErrNoTarget    = errors.New("no target")
)

// Handlers 浏览器事件回调
type Handlers struct {
	// Navigate 返回 true 放行导航，false 阻止
	Navigate  func(domain.NavigationAttempt) bool
	LoadError func(domain.LoadError)
}

// Surface 附加到单个页面目标的内嵌浏览器
type Surface struct {
	devtoolsURL    string
	processTimeout time.Duration
	log            logger.Logger

	conn     *rpcc.Conn
	client   *cdp.Client
	target   domain.TargetID
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	handlers Handlers

	// 主框架及其放行的文档请求，只有这些请求的加载失败会上报
	mu        sync.Mutex
	mainFrame page.FrameID
	mainDocs  map[string]struct{}
}

// New 创建浏览器表面
func New(devtoolsURL string, processTimeoutMS int, l logger.Logger) *Surface {
	if l == nil {
		l = logger.NewNop()
	}
	to := time.Duration(processTimeoutMS) * time.Millisecond
	if to <= 0 {
		to = 3 * time.Second
	}
	return &Surface{devtoolsURL: devtoolsURL, processTimeout: to, log: l}
}

// ListTargets 列出可附加的页面目标
func (s *Surface) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	targets, err := devtool.New(s.devtoolsURL).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, ToTargetInfo(t, s.target))
	}
	return out, nil
}

// AttachTarget 附加到指定页面，target 为空时选择第一个页面，没有页面时新建
func (s *Surface) AttachTarget(ctx context.Context, target domain.TargetID) error {
	dt := devtool.New(s.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return err
	}
	var sel *devtool.Target
	for i := range targets {
		if targets[i].Type != devtool.Page {
			continue
		}
		if target == "" || domain.TargetID(targets[i].ID) == target {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		if target != "" {
			return fmt.Errorf("%w: %s", ErrNoTarget, target)
		}
		if sel, err = dt.Create(ctx); err != nil {
			return fmt.Errorf("create target: %w", err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		s.cancel()
		return err
	}
	s.conn = conn
	s.client = cdp.NewClient(conn)
	s.target = domain.TargetID(sel.ID)
	s.log.Info("已附加浏览器目标", "target", string(s.target), "url", sel.URL)
	return nil
}

// Network 返回网络域，供 Cookie 桥接使用
func (s *Surface) Network() cdp.Network {
	if s.client == nil {
		return nil
	}
	return s.client.Network
}

// Target 当前附加的目标
func (s *Surface) Target() domain.TargetID { return s.target }

// Open 启用导航拦截并在页面中加载 source
func (s *Surface) Open(ctx context.Context, source string, h Handlers) error {
	if s.client == nil {
		return ErrNotAttached
	}
	if h.Navigate == nil {
		h.Navigate = func(domain.NavigationAttempt) bool { return true }
	}
	if h.LoadError == nil {
		h.LoadError = func(domain.LoadError) {}
	}
	s.handlers = h

	if s.group == nil {
		if err := s.enable(ctx); err != nil {
			return err
		}
	}

	reply, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(source))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	// 失败由 loadingFailed 事件统一上报
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		s.log.Debug("页面导航返回错误", "url", source, "error", *reply.ErrorText)
	}
	return nil
}

func (s *Surface) enable(ctx context.Context) error {
	if err := s.client.Network.Enable(ctx, nil); err != nil {
		return err
	}
	if err := s.client.Page.Enable(ctx); err != nil {
		return err
	}
	tree, err := s.client.Page.GetFrameTree(ctx)
	if err != nil {
		return fmt.Errorf("frame tree: %w", err)
	}
	s.setMainFrame(tree.FrameTree.Frame.ID)

	// 先订阅再启用拦截，避免漏掉首个导航
	paused, err := s.client.Fetch.RequestPaused(s.ctx)
	if err != nil {
		return err
	}
	failed, err := s.client.Network.LoadingFailed(s.ctx)
	if err != nil {
		paused.Close()
		return err
	}

	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
	}
	if err := s.client.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		paused.Close()
		failed.Close()
		return err
	}

	g, _ := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		defer paused.Close()
		for {
			ev, err := paused.Recv()
			if err != nil {
				return s.streamClosed("requestPaused", err)
			}
			s.handlePaused(ev)
		}
	})
	g.Go(func() error {
		defer failed.Close()
		for {
			ev, err := failed.Recv()
			if err != nil {
				return s.streamClosed("loadingFailed", err)
			}
			s.handleFailed(ev)
		}
	})
	s.group = g
	s.log.Info("导航拦截已启用", "target", string(s.target))
	return nil
}

func (s *Surface) streamClosed(name string, err error) error {
	if s.ctx.Err() != nil {
		return nil
	}
	s.log.Err(err, "事件流中断", "stream", name, "target", string(s.target))
	return fmt.Errorf("%s: %w", name, err)
}

// handlePaused 裁决一次被暂停的请求，非文档请求直接放行
func (s *Surface) handlePaused(ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(s.ctx, s.processTimeout)
	defer cancel()

	if !IsNavigation(ev) {
		s.continueRequest(ctx, ev)
		return
	}

	att := ToNavigationAttempt(ev)
	if s.handlers.Navigate(att) {
		s.log.Debug("放行导航", "url", att.URL)
		s.trackMainDocument(ev)
		s.continueRequest(ctx, ev)
		return
	}

	// 以 204 响应结束导航，页面停留在当前文档且不会产生加载错误
	s.log.Debug("阻止导航", "requestID", string(ev.RequestID))
	if err := s.client.Fetch.FulfillRequest(ctx, &fetch.FulfillRequestArgs{RequestID: ev.RequestID, ResponseCode: 204}); err != nil {
		s.log.Err(err, "阻止导航失败", "requestID", string(ev.RequestID))
	}
}

func (s *Surface) setMainFrame(id page.FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainFrame = id
	s.mainDocs = make(map[string]struct{})
}

func (s *Surface) trackMainDocument(ev *fetch.RequestPausedReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := MainFrameRequestID(ev, s.mainFrame); ok {
		s.mainDocs[id] = struct{}{}
	}
}

// handleFailed 只上报主框架文档的加载失败，子框架失败不影响认证
func (s *Surface) handleFailed(ev *network.LoadingFailedReply) {
	le, ok := ToLoadError(ev)
	if !ok {
		return
	}
	s.mu.Lock()
	_, main := s.mainDocs[string(ev.RequestID)]
	delete(s.mainDocs, string(ev.RequestID))
	s.mu.Unlock()
	if !main {
		s.log.Debug("忽略子框架加载失败", "requestID", string(ev.RequestID), "error", le.Description)
		return
	}
	s.log.Warn("文档加载失败", "error", le.Description)
	s.handlers.LoadError(le)
}

func (s *Surface) continueRequest(ctx context.Context, ev *fetch.RequestPausedReply) {
	if err := s.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID}); err != nil {
		s.log.Err(err, "放行请求失败", "requestID", string(ev.RequestID))
	}
}

// Wait 等待事件流结束，返回首个异常
func (s *Surface) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Detach 停止拦截并断开连接
func (s *Surface) Detach() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if s.group != nil {
		_ = s.group.Wait()
		s.group = nil
	}
	s.log.Info("已断开浏览器目标", "target", string(s.target))
	return err
}
