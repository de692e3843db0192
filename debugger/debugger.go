package debugger

import (
	"context"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/debugger/model"
	"github.com/fansqz/lua-debugger/protocol"
)

type NotificationCallback func(interface{})

// EvalCallback 求值结果回调，每个请求最多调用一次
type EvalCallback func(value *protocol.DebugVariable, err error)

// Debugger
// 一次lua远程调试会话
// 需要保证并发安全，动作类命令都是发出即返回，状态变化通过事件通知
type Debugger interface {
	// Start 建立连接并完成握手
	Start(ctx context.Context, option *StartOption) error
	// Continue 继续执行
	Continue(ctx context.Context) error
	// Pause 暂停
	Pause(ctx context.Context) error
	// StepOver 下一步，不会进入函数内部
	StepOver(ctx context.Context) error
	// StepIn 下一步，会进入函数内部
	StepIn(ctx context.Context) error
	// StepOut 单步退出
	StepOut(ctx context.Context) error
	// RunToPosition 运行到指定位置，行号从0开始
	RunToPosition(ctx context.Context, pos breakpoint.Position) error
	// StartHook 请求被调试进程重新安装调试钩子
	StartHook(ctx context.Context) error
	// AddBreakpoint 添加断点，立即同步给被调试进程
	AddBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error
	// RemoveBreakpoint 移除断点
	RemoveBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error
	// Evaluate 异步求值
	Evaluate(expr string, stackLevel int, cacheID int, depth int, callback EvalCallback)
	// EvaluateSync 同步求值，ctx结束时放弃等待
	EvaluateSync(ctx context.Context, expr string, stackLevel int, cacheID int, depth int) (*protocol.DebugVariable, error)
	// GetStack 最近一次暂停的调用栈，运行中返回nil
	GetStack() *model.ExecutionStack
	// Status 会话状态
	Status() constants.SessionStatus
	// Stop 终止调试，会话不可再使用
	Stop()
}
