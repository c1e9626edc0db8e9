// Package layout 提供默认的终端布局。
package layout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"cdpoauth/internal/interceptor"
	"cdpoauth/pkg/api"
	"cdpoauth/pkg/domain"
)

// Console 在终端输出认证进度，中断时以用户取消结束
type Console struct {
	Out io.Writer
	// Color 为 nil 时根据输出是否为终端自动判断
	Color *bool
}

var _ api.Layout = (*Console)(nil)

// Render 打开认证入口并输出事件，直到得出结果或 ctx 结束
func (c *Console) Render(ctx context.Context, props api.RenderProps) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	color := c.useColor(out)
	accent := ansiColor(props.LoadingColor)

	fmt.Fprintln(out, c.paint(color, accent, "正在浏览器中进行认证，按 Ctrl+C 取消"))
	if props.Open != nil {
		if err := props.Open(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			if props.OnFailure != nil {
				props.OnFailure(interceptor.MsgUserCancelled, nil)
			}
			fmt.Fprintln(out, "已取消")
			return nil
		case ev, ok := <-props.Events:
			if !ok {
				return nil
			}
			line := describe(ev)
			if line == "" {
				continue
			}
			if ev.Loading {
				line = c.paint(color, accent, line)
			}
			fmt.Fprintln(out, line)
			switch ev.Type {
			case domain.EventSuccess, domain.EventFailure:
				return nil
			}
		}
	}
}

func describe(ev domain.Event) string {
	switch ev.Type {
	case domain.EventAuthenticating:
		return "加载认证页面 " + ev.URL
	case domain.EventIntercepted:
		return "收到凭据，正在写入 Cookie"
	case domain.EventSuccess:
		return "认证成功"
	case domain.EventFailure:
		return "认证失败: " + ev.Message
	case domain.EventCancelled:
		return "认证已取消"
	default:
		return ""
	}
}

func (c *Console) useColor(out io.Writer) bool {
	if c.Color != nil {
		return *c.Color
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) paint(on bool, seq, s string) string {
	if !on || seq == "" {
		return s
	}
	return seq + s + "\x1b[0m"
}

// ansiColor 将 #rrggbb 转换为 24 位前景色转义序列，格式不符时返回空串
func ansiColor(hex string) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return ""
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", v>>16&0xff, v>>8&0xff, v&0xff)
}
