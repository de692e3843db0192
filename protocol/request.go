package protocol

import "sync/atomic"

// Message 所有发送给被调试进程的消息
type Message interface {
	Command() Command
}

// sequence 进程级别的求值序列号，不随会话重置，
// 断线重连后的过期响应靠会话内的pending表过滤
var sequence atomic.Int64

// NextSequence 从0开始单调递增
func NextSequence() int {
	return int(sequence.Add(1) - 1)
}

// InitRequest 注入helper代码，告知可调试的文件后缀
type InitRequest struct {
	EmmyHelper string   `json:"emmyHelper"`
	Ext        []string `json:"ext"`
}

func (r *InitRequest) Command() Command { return InitReq }

// ReadyRequest 初始化完成，被调试进程收到后可能立即开始运行
type ReadyRequest struct{}

func (r *ReadyRequest) Command() Command { return ReadyReq }

// ActionRequest 单步、继续、暂停、停止
type ActionRequest struct {
	Action Action `json:"action"`
}

func (r *ActionRequest) Command() Command { return ActionReq }

func NewActionRequest(action Action) *ActionRequest {
	return &ActionRequest{Action: action}
}

type AddBreakpointRequest struct {
	BreakPoints []*DebugBreakpoint `json:"breakPoints"`
}

func (r *AddBreakpointRequest) Command() Command { return AddBreakPointReq }

type RemoveBreakpointRequest struct {
	BreakPoints []*DebugBreakpoint `json:"breakPoints"`
}

func (r *RemoveBreakpointRequest) Command() Command { return RemoveBreakPointReq }

// EvalRequest 求值请求，响应通过Seq匹配
type EvalRequest struct {
	Expr       string `json:"expr"`
	StackLevel int    `json:"stackLevel"`
	CacheID    int    `json:"cacheId"`
	Depth      int    `json:"depth"`
	Seq        int    `json:"seq"`
}

func (r *EvalRequest) Command() Command { return EvalReq }

// NewEvalRequest 分配新的序列号
func NewEvalRequest(expr string, stackLevel int, cacheID int, depth int) *EvalRequest {
	return &EvalRequest{
		Expr:       expr,
		StackLevel: stackLevel,
		CacheID:    cacheID,
		Depth:      depth,
		Seq:        NextSequence(),
	}
}

type StartHookRequest struct{}

func (r *StartHookRequest) Command() Command { return StartHookReq }
