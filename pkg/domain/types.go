package domain

type SessionID string
type TargetID string

// 固定的重定向协议常量
const (
	SuccessURL          = "http://localhost/auth/oauth2/success"
	FailureURL          = "http://localhost/auth/oauth2/failure"
	RedirectOrigin      = "http://localhost"
	DefaultLoadingColor = "#206fce"
)

// SessionConfig 会话配置
type SessionConfig struct {
	DevToolsURL      string   `json:"devToolsURL"`
	Target           TargetID `json:"target"`
	ProcessTimeoutMS int      `json:"processTimeoutMS"`
	// Endpoint 认证服务地址，决定 Cookie 写入的源
	Endpoint     string       `json:"endpoint"`
	Project      string       `json:"project"`
	Request      OAuthRequest `json:"request"`
	CookieData   string       `json:"cookieData"`
	LoadingColor string       `json:"loadingColor"`
}

// OAuthRequest 单次认证尝试的输入，尝试期间不可变
type OAuthRequest struct {
	Provider      string   `json:"provider"`
	Scopes        []string `json:"scopes"`
	SuccessTarget string   `json:"successTarget"`
	FailureTarget string   `json:"failureTarget"`
}

// NewOAuthRequest 使用固定的本地重定向目标创建认证请求
func NewOAuthRequest(provider string, scopes ...string) OAuthRequest {
	s := make([]string, len(scopes))
	copy(s, scopes)
	return OAuthRequest{
		Provider:      provider,
		Scopes:        s,
		SuccessTarget: SuccessURL,
		FailureTarget: FailureURL,
	}
}

// NavigationAttempt 浏览器即将发起的一次导航
type NavigationAttempt struct {
	URL string `json:"url"`
}

// LoadError 浏览器加载页面失败事件
type LoadError struct {
	Description string `json:"description"`
	Detail      any    `json:"detail,omitempty"`
}

// CredentialPair 从重定向 URL 中提取的凭据
type CredentialPair struct {
	Key    string
	Secret string
}

type TargetInfo struct {
	ID        TargetID `json:"id"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	IsCurrent bool     `json:"isCurrent"`
}

// Event 控制器对外发出的状态事件
type Event struct {
	Type      string    `json:"type"`
	Session   SessionID `json:"session"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message,omitempty"`
	Loading   bool      `json:"loading"`
	Timestamp int64     `json:"timestamp"`
}

// 事件类型
const (
	EventAuthenticating = "authenticating"
	EventIntercepted    = "intercepted"
	EventSuccess        = "success"
	EventFailure        = "failure"
	EventCancelled      = "cancelled"
	EventIdle           = "idle"
	EventStale          = "stale"
)
