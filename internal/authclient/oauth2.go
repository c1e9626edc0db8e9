package authclient

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OAuth2 基于 golang.org/x/oauth2 的认证客户端，适用于按提供方配置授权端点的代理服务。
// 成功地址作为 redirect_uri，失败地址通过 failure 参数传递。
type OAuth2 struct {
	endpoint  string
	providers map[string]oauth2.Config
	state     func() string
}

// NewOAuth2 创建认证客户端，providers 以提供方名称为键
func NewOAuth2(endpoint string, providers map[string]oauth2.Config) *OAuth2 {
	return &OAuth2{
		endpoint:  endpoint,
		providers: providers,
		state:     func() string { return uuid.NewString() },
	}
}

// Endpoint 实现 Client
func (o *OAuth2) Endpoint() string { return o.endpoint }

// CreateOAuth2Session 实现 Client
func (o *OAuth2) CreateOAuth2Session(provider, successURL, failureURL string, scopes []string) (*url.URL, error) {
	if provider == "" {
		return nil, ErrEmptyProvider
	}
	cfg, ok := o.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	cfg.RedirectURL = successURL
	if len(scopes) > 0 {
		cfg.Scopes = scopes
	}
	raw := cfg.AuthCodeURL(o.state(), oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("failure", failureURL))
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse auth url: %w", err)
	}
	return u, nil
}
