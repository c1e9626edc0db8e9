package domain

// Phase 控制器状态机阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthenticating
	PhaseLoading
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseLoading:
		return "loading"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Outcome 一次认证尝试的最终结果
type Outcome struct {
	Success bool
	Message string
	Detail  any
}

// SessionState 控制器状态快照
type SessionState struct {
	Phase   Phase
	Outcome *Outcome
	Loading bool
	Source  string
}

// Resolved 是否已得出结果
func (s SessionState) Resolved() bool { return s.Phase == PhaseResolved }
