package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"

	"cdpoauth/internal/cookie"
)

// Jar 基于 net/http/cookiejar 的进程内 Cookie 存储，可直接作为 http.Client 的 Jar
type Jar struct {
	jar http.CookieJar
}

// NewJar 创建使用公共后缀表的 Cookie 存储
func NewJar() (*Jar, error) {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Jar{jar: j}, nil
}

// CookieJar 返回底层存储，供后续认证请求使用
func (b *Jar) CookieJar() http.CookieJar { return b.jar }

// Client 返回共享该存储的 HTTP 客户端
func (b *Jar) Client() *http.Client { return &http.Client{Jar: b.jar} }

// SetCookie 实现 Bridge，写入后回读确认存储是否接受
func (b *Jar) SetCookie(ctx context.Context, origin, s string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("invalid origin %q", origin)
	}
	c, err := cookie.Parse(s)
	if err != nil {
		return false, nil
	}

	b.jar.SetCookies(u, []*http.Cookie{c})

	check := *u
	if c.Path != "" {
		check.Path = c.Path
	}
	for _, got := range b.jar.Cookies(&check) {
		if got.Name == c.Name && got.Value == c.Value {
			return true, nil
		}
	}
	return false, nil
}
