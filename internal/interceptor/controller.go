// Package interceptor 实现登录重定向拦截与 Cookie 桥接的状态机。
//
// 状态转换表：
//
//	事件                         前置状态          结果
//	SetAuthenticating(true)      Idle              Authenticating，生成入口 URL，loading=true
//	SetAuthenticating(false)     任意              Idle，清空入口 URL，loading=false，作废未完成的桥接
//	导航，URL 为空                任意              阻止导航，状态不变
//	导航，Idle                    Idle              放行，不拦截
//	导航，未匹配                  非 Idle           放行，未得出结果时 loading = 目标源属于提供方或 http://localhost
//	导航，匹配                    非 Idle           阻止导航，异步写入 Cookie
//	桥接返回 true                 同一代            Resolved(Success)，loading=false，通知成功
//	桥接返回 false                同一代            Resolved(Failure("Cookie not set"))，通知失败
//	桥接返回错误                  同一代            Resolved(Failure(err))，通知失败
//	桥接结果，已取消或已重置       旧代              丢弃，只记录日志
//	加载错误                      未得出结果        Resolved(Failure(描述, 细节))，loading=false，通知失败，作废未完成的桥接
//	Cancel / Fail                 未得出结果        Resolved(Failure(消息))，作废未完成的桥接
//	Succeed                       未得出结果        Resolved(Success)，作废未完成的桥接
//	加载错误 / Cancel / Fail / Succeed  Idle 或 Resolved  忽略
//
// 同一代内的多次匹配各自独立完成桥接，每次都会触发通知，最后完成的一次决定最终状态。
package interceptor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cdpoauth/internal/authclient"
	"cdpoauth/internal/bridge"
	"cdpoauth/internal/cookie"
	"cdpoauth/internal/logger"
	"cdpoauth/internal/matcher"
	"cdpoauth/pkg/domain"
)

// 失败通知的固定消息
const (
	MsgCookieNotSet  = "Cookie not set"
	MsgUserCancelled = "User cancelled"
)

const defaultBridgeTimeout = 10 * time.Second

var (
	ErrMissingProvider = errors.New("interceptor: provider is required")
	ErrMissingClient   = errors.New("interceptor: auth client is required")
	ErrMissingBridge   = errors.New("interceptor: session bridge is required")
)

// Options 控制器配置
type Options struct {
	Session    domain.SessionID
	Request    domain.OAuthRequest
	Client     authclient.Client
	Bridge     bridge.Bridge
	CookieData string
	OnSuccess  func()
	OnFailure  func(message string, detail any)
	// Events 可选的事件输出通道，满时丢弃
	Events        chan<- domain.Event
	BridgeTimeout time.Duration
	Logger        logger.Logger
}

// Controller 拦截控制器
type Controller struct {
	session    domain.SessionID
	client     authclient.Client
	bridge     bridge.Bridge
	cookieData string
	origin     string
	timeout    time.Duration
	onSuccess  func()
	onFailure  func(string, any)
	events     chan<- domain.Event
	log        logger.Logger

	mu      sync.Mutex
	req     domain.OAuthRequest
	phase   domain.Phase
	loading bool
	source  string
	outcome *domain.Outcome
	gen     uint64

	wg sync.WaitGroup
}

// New 创建控制器，配置缺失时拒绝初始化
func New(opts Options) (*Controller, error) {
	if opts.Request.Provider == "" {
		return nil, ErrMissingProvider
	}
	if opts.Client == nil {
		return nil, ErrMissingClient
	}
	if opts.Bridge == nil {
		return nil, ErrMissingBridge
	}
	c := &Controller{
		session:    opts.Session,
		client:     opts.Client,
		bridge:     opts.Bridge,
		cookieData: opts.CookieData,
		origin:     bridge.Origin(opts.Client.Endpoint()),
		timeout:    opts.BridgeTimeout,
		onSuccess:  opts.OnSuccess,
		onFailure:  opts.OnFailure,
		events:     opts.Events,
		log:        opts.Logger,
		req:        normalizeRequest(opts.Request),
	}
	if c.cookieData == "" {
		c.cookieData = cookie.DefaultAttributes
	}
	if c.timeout <= 0 {
		c.timeout = defaultBridgeTimeout
	}
	if c.onSuccess == nil {
		c.onSuccess = func() {}
	}
	if c.onFailure == nil {
		c.onFailure = func(string, any) {}
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	c.log = c.log.With("session", string(c.session))
	return c, nil
}

func normalizeRequest(r domain.OAuthRequest) domain.OAuthRequest {
	if r.SuccessTarget == "" {
		r.SuccessTarget = domain.SuccessURL
	}
	if r.FailureTarget == "" {
		r.FailureTarget = domain.FailureURL
	}
	return r
}

// SetAuthenticating 对应外部 authenticating 标志的变化
func (c *Controller) SetAuthenticating(on bool) error {
	c.mu.Lock()
	if !on {
		if c.phase == domain.PhaseIdle {
			c.mu.Unlock()
			return nil
		}
		c.phase = domain.PhaseIdle
		c.source = ""
		c.loading = false
		c.outcome = nil
		c.gen++
		c.mu.Unlock()
		c.log.Info("认证结束，回到空闲状态")
		c.emit(domain.Event{Type: domain.EventIdle})
		return nil
	}
	if c.phase != domain.PhaseIdle {
		c.mu.Unlock()
		return nil
	}
	src, err := c.derive(c.req)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = domain.PhaseAuthenticating
	c.source = src
	c.loading = true
	c.outcome = nil
	provider := c.req.Provider
	c.mu.Unlock()

	c.log.Info("开始认证", "provider", provider, "source", src)
	c.emit(domain.Event{Type: domain.EventAuthenticating, URL: src, Loading: true})
	return nil
}

// SetRequest 替换认证请求，认证进行中时重新生成入口 URL
func (c *Controller) SetRequest(r domain.OAuthRequest) error {
	if r.Provider == "" {
		return ErrMissingProvider
	}
	r = normalizeRequest(r)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseIdle {
		src, err := c.derive(r)
		if err != nil {
			return err
		}
		c.source = src
	}
	c.req = r
	return nil
}

func (c *Controller) derive(r domain.OAuthRequest) (string, error) {
	u, err := c.client.CreateOAuth2Session(r.Provider, r.SuccessTarget, r.FailureTarget, r.Scopes)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ShouldStartLoad 处理一次导航尝试，返回 true 表示放行
func (c *Controller) ShouldStartLoad(att domain.NavigationAttempt) bool {
	if att.URL == "" {
		return false
	}

	c.mu.Lock()
	if c.phase == domain.PhaseIdle {
		c.mu.Unlock()
		return true
	}
	// 已得出结果后不再显示加载状态
	if c.phase != domain.PhaseResolved {
		origin := bridge.Origin(att.URL)
		c.loading = origin == c.origin || origin == domain.RedirectOrigin
	}
	pair, ok := matcher.Match(att.URL)
	if !ok {
		c.mu.Unlock()
		return true
	}
	gen := c.gen
	cookieStr := cookie.Assemble(pair, c.cookieData)
	c.wg.Add(1)
	c.mu.Unlock()

	target, _, _ := strings.Cut(att.URL, "?")
	c.log.Info("拦截到凭据重定向", "target", target, "key", pair.Key)
	c.emit(domain.Event{Type: domain.EventIntercepted, URL: target, Loading: true})

	go c.exchange(gen, cookieStr)
	return false
}

func (c *Controller) exchange(gen uint64, cookieStr string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	ok, err := c.bridge.SetCookie(ctx, c.origin, cookieStr)
	var out domain.Outcome
	switch {
	case err != nil:
		c.log.Err(err, "写入 Cookie 异常", "origin", c.origin)
		out = domain.Outcome{Message: err.Error(), Detail: err}
	case ok:
		out = domain.Outcome{Success: true}
	default:
		c.log.Warn("Cookie 存储拒绝写入", "origin", c.origin)
		out = domain.Outcome{Message: MsgCookieNotSet}
	}

	if !c.resolve(gen, out) {
		c.log.Info("认证已取消或重置，忽略桥接结果", "success", out.Success)
		c.emit(domain.Event{Type: domain.EventStale, Message: out.Message})
		return
	}
	c.notify(out)
}

// resolve 在代次一致时写入结果
func (c *Controller) resolve(gen uint64, out domain.Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.phase == domain.PhaseIdle {
		return false
	}
	c.loading = false
	c.phase = domain.PhaseResolved
	c.outcome = &out
	return true
}

func (c *Controller) notify(out domain.Outcome) {
	if out.Success {
		c.log.Info("认证成功")
		c.emit(domain.Event{Type: domain.EventSuccess})
		c.onSuccess()
		return
	}
	c.log.Warn("认证失败", "message", out.Message)
	c.emit(domain.Event{Type: domain.EventFailure, Message: out.Message})
	c.onFailure(out.Message, out.Detail)
}

// LoadError 处理浏览器加载失败
func (c *Controller) LoadError(ev domain.LoadError) {
	c.mu.Lock()
	if c.phase == domain.PhaseIdle || c.phase == domain.PhaseResolved {
		c.mu.Unlock()
		return
	}
	out := domain.Outcome{Message: ev.Description, Detail: ev.Detail}
	c.loading = false
	c.phase = domain.PhaseResolved
	c.outcome = &out
	c.gen++
	c.mu.Unlock()

	c.notify(out)
}

// Cancel 用户取消认证，未完成的桥接结果将被忽略
func (c *Controller) Cancel() {
	c.Fail(MsgUserCancelled, nil)
}

// Fail 以给定消息终止本次认证
func (c *Controller) Fail(message string, detail any) {
	c.mu.Lock()
	if c.phase == domain.PhaseIdle || c.phase == domain.PhaseResolved {
		c.mu.Unlock()
		return
	}
	out := domain.Outcome{Message: message, Detail: detail}
	c.loading = false
	c.phase = domain.PhaseResolved
	c.outcome = &out
	c.gen++
	c.mu.Unlock()

	if message == MsgUserCancelled {
		c.emit(domain.Event{Type: domain.EventCancelled, Message: message})
	}
	c.notify(out)
}

// Succeed 由自定义布局直接报告成功
func (c *Controller) Succeed() {
	c.mu.Lock()
	if c.phase == domain.PhaseIdle || c.phase == domain.PhaseResolved {
		c.mu.Unlock()
		return
	}
	out := domain.Outcome{Success: true}
	c.loading = false
	c.phase = domain.PhaseResolved
	c.outcome = &out
	c.gen++
	c.mu.Unlock()

	c.notify(out)
}

// SetLoading 供布局设置加载状态，空闲时忽略
func (c *Controller) SetLoading(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseIdle {
		c.loading = v
	}
}

// Snapshot 返回当前状态快照
func (c *Controller) Snapshot() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.SessionState{
		Phase:   c.phase,
		Loading: c.loading,
		Source:  c.source,
	}
	if c.phase == domain.PhaseAuthenticating && c.loading {
		st.Phase = domain.PhaseLoading
	}
	if c.outcome != nil {
		o := *c.outcome
		st.Outcome = &o
	}
	return st
}

// Wait 等待所有已发起的桥接调用结束
func (c *Controller) Wait() { c.wg.Wait() }

// emit 安全发送事件到通道，自动添加时间戳
func (c *Controller) emit(evt domain.Event) {
	if c.events == nil {
		return
	}
	evt.Session = c.session
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case c.events <- evt:
	default:
	}
}
