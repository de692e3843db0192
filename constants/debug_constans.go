package constants

// TransportMode 连接方式
type TransportMode string

const (
	// ModeClient 主动连接被调试进程
	ModeClient TransportMode = "client"
	// ModeServer 监听端口，等待被调试进程连接，断开后可以重新连接
	ModeServer TransportMode = "server"
)

// SessionStatus 调试会话状态
type SessionStatus string

const (
	Disconnected SessionStatus = "disconnected"
	Connecting   SessionStatus = "connecting"
	Connected    SessionStatus = "connected"
	// Ready 握手完成（helper代码、断点已同步）
	Ready     SessionStatus = "ready"
	Running   SessionStatus = "running"
	Suspended SessionStatus = "suspended"
	// Stopped 终态，重新调试需要新的会话
	Stopped SessionStatus = "stopped"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	// BreakpointStopped 停在了用户设置的断点上
	BreakpointStopped StoppedReasonType = "breakpoint"
	// PositionStopped 单步、暂停、runToHere等到达的位置
	PositionStopped StoppedReasonType = "position"
)

// LogType 被调试进程发送的日志级别
type LogType int

const (
	LogInfo LogType = iota
	LogWarning
	LogError
)

func (l LogType) String() string {
	switch l {
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

const (
	// DefaultEvalDepth 普通求值时返回的表深度
	DefaultEvalDepth = 1
	// ChildrenEvalDepth 展开table子节点时的深度
	ChildrenEvalDepth = 2
)
