package debugger

import (
	"time"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/debugger/model"
	"github.com/fansqz/lua-debugger/transport"
)

// SourceLocator 文件查找
type SourceLocator = model.SourceLocator

// StartOption 启动调试的参数
type StartOption struct {
	Mode constants.TransportMode
	Host string
	Port int
	// HelperFile 注入到被调试进程的helper代码，读取失败时发送空代码
	HelperFile string
	// Extensions 可调试的文件后缀
	Extensions []string
	// SourceRoots 查找源码的额外目录
	SourceRoots []string
	Registry    breakpoint.Registry
	Locator     SourceLocator
	// Callback 事件回调
	Callback NotificationCallback

	DialTimeout  time.Duration
	DrainTimeout time.Duration
	// Transport 不为空时直接使用，不再根据Mode创建
	Transport transport.Transport
}

var DefaultExtensions = []string{".lua"}

// ConnectedEvent 与被调试进程建立连接
type ConnectedEvent struct {
	Mode constants.TransportMode
}

// DisconnectedEvent 监听模式下对端断开，会话继续等待新的连接
type DisconnectedEvent struct {
}

// StoppedEvent
// 被调试进程暂停，Breakpoint不为空时表示命中了用户断点
type StoppedEvent struct {
	Reason     constants.StoppedReasonType
	Stack      *model.ExecutionStack
	Breakpoint *breakpoint.Breakpoint
}

func NewStoppedEvent(reason constants.StoppedReasonType, stack *model.ExecutionStack, bp *breakpoint.Breakpoint) *StoppedEvent {
	return &StoppedEvent{
		Reason:     reason,
		Stack:      stack,
		Breakpoint: bp,
	}
}

// ContinuedEvent 执行继续
type ContinuedEvent struct {
}

// LogEvent 被调试进程发来的日志
type LogEvent struct {
	Type    constants.LogType
	Message string
}

// AttachedEvent 被调试进程attach完成
type AttachedEvent struct {
	State int64
}

// OutputEvent
// 用户程序输出
type OutputEvent struct {
	Output string
}

func NewOutputEvent(output string) *OutputEvent {
	return &OutputEvent{
		Output: output,
	}
}

// ErrorEvent 传输层或协议错误
type ErrorEvent struct {
	Message string
	Err     error
}

// TerminatedEvent 调试会话结束
type TerminatedEvent struct {
}
