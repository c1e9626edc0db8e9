// Package authclient 生成身份提供方的 OAuth2 登录入口 URL。
package authclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Client 认证客户端接口
type Client interface {
	// CreateOAuth2Session 返回浏览器应加载的登录入口 URL
	CreateOAuth2Session(provider, successURL, failureURL string, scopes []string) (*url.URL, error)
	// Endpoint 身份提供方的 API 地址
	Endpoint() string
}

var (
	ErrEmptyProvider   = errors.New("provider is required")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Appwrite 兼容 Appwrite 账户接口的认证客户端
type Appwrite struct {
	endpoint string
	project  string
}

// NewAppwrite 创建认证客户端，endpoint 形如 https://host/v1
func NewAppwrite(endpoint, project string) (*Appwrite, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be absolute", endpoint)
	}
	return &Appwrite{endpoint: strings.TrimSuffix(endpoint, "/"), project: project}, nil
}

// Endpoint 实现 Client
func (a *Appwrite) Endpoint() string { return a.endpoint }

// CreateOAuth2Session 实现 Client
func (a *Appwrite) CreateOAuth2Session(provider, successURL, failureURL string, scopes []string) (*url.URL, error) {
	if provider == "" {
		return nil, ErrEmptyProvider
	}
	u, err := url.Parse(a.endpoint + "/account/sessions/oauth2/" + url.PathEscape(provider))
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("success", successURL)
	q.Set("failure", failureURL)
	if a.project != "" {
		q.Set("project", a.project)
	}
	for _, s := range scopes {
		q.Add("scopes[]", s)
	}
	u.RawQuery = q.Encode()
	return u, nil
}
