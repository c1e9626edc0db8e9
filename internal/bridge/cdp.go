package bridge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"

	"cdpoauth/internal/cookie"
	"cdpoauth/internal/logger"
)

// CDP 通过 DevTools 的 Network.setCookie 写入浏览器 Cookie 存储
type CDP struct {
	net cdp.Network
	log logger.Logger
}

// NewCDP 创建基于 DevTools 网络域的桥接
func NewCDP(n cdp.Network, l logger.Logger) *CDP {
	if l == nil {
		l = logger.NewNop()
	}
	return &CDP{net: n, log: l}
}

// SetCookie 实现 Bridge
func (b *CDP) SetCookie(ctx context.Context, origin, s string) (bool, error) {
	c, err := cookie.Parse(s)
	if err != nil {
		b.log.Warn("Cookie 格式无效，拒绝写入", "origin", origin, "error", err)
		return false, nil
	}

	args := network.NewSetCookieArgs(c.Name, c.Value).SetURL(origin).SetHTTPOnly(c.HttpOnly)
	if c.Path != "" {
		args.SetPath(c.Path)
	}
	if c.Domain != "" {
		args.SetDomain(c.Domain)
	}
	if c.Secure {
		args.SetSecure(true)
	}
	switch c.SameSite {
	case http.SameSiteLaxMode:
		args.SetSameSite(network.CookieSameSiteLax)
	case http.SameSiteStrictMode:
		args.SetSameSite(network.CookieSameSiteStrict)
	case http.SameSiteNoneMode:
		args.SetSameSite(network.CookieSameSiteNone)
	}

	reply, err := b.net.SetCookie(ctx, args)
	if err != nil {
		return false, fmt.Errorf("network.setCookie: %w", err)
	}
	b.log.Debug("Cookie 写入完成", "origin", origin, "name", c.Name, "success", reply.Success)
	return reply.Success, nil
}
