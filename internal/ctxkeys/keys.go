package ctxkeys

// TraceIDKey 上下文中的追踪 ID，值为会话 ID
type TraceIDKey struct{}
