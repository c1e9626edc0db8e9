package cookie

import (
	"fmt"
	"net/http"
	"strings"

	"cdpoauth/pkg/domain"
)

// DefaultAttributes 调用方未指定时使用的 Cookie 属性
const DefaultAttributes = "path=/; HttpOnly"

// EnsureHTTPOnly 确保属性串包含 HttpOnly（大小写不敏感），缺失时前置，已存在时原样返回
func EnsureHTTPOnly(attributes string) string {
	if strings.Contains(strings.ToLower(attributes), "httponly") {
		return attributes
	}
	return "HttpOnly; " + attributes
}

// Assemble 生成 "<key>=<secret>; <attributes>" 形式的 Cookie 串
func Assemble(pair domain.CredentialPair, attributes string) string {
	return pair.Key + "=" + pair.Secret + "; " + EnsureHTTPOnly(attributes)
}

// Parse 将组装后的 Cookie 串解析为结构化 Cookie
func Parse(s string) (*http.Cookie, error) {
	c, err := http.ParseSetCookie(s)
	if err != nil {
		return nil, fmt.Errorf("parse cookie: %w", err)
	}
	return c, nil
}
