// Package bridge 将组装好的 Cookie 写入宿主共享的 Cookie 存储。
//
// SetCookie 的三种结果需要被调用方区分：
//   - true, nil   存储接受了 Cookie
//   - false, nil  存储明确拒绝（格式错误、域不匹配等）
//   - _, err      底层操作异常
package bridge

import (
	"context"
	"strings"
)

// Bridge 会话桥接接口
type Bridge interface {
	SetCookie(ctx context.Context, origin, cookie string) (bool, error)
}

// Func 函数适配器，便于宿主直接提供实现
type Func func(ctx context.Context, origin, cookie string) (bool, error)

// SetCookie 实现 Bridge
func (f Func) SetCookie(ctx context.Context, origin, cookie string) (bool, error) {
	return f(ctx, origin, cookie)
}

// Origin 取 endpoint 按 "/" 切分后的前三段，即 scheme://host[:port]
func Origin(endpoint string) string {
	parts := strings.SplitN(endpoint, "/", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, "/")
}
