package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fansqz/lua-debugger/dapview"
	. "github.com/fansqz/lua-debugger/debugger"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/debugger/model"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/launcher"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

const EvalTimeout = 5 * time.Second

var errNotSuspended = errors.New("debuggee is not suspended")

// ConsoleHandler 把用户输入的命令转换为调试会话的操作，结果以DAP响应输出
type ConsoleHandler struct {
	debugger Debugger
	registry *breakpoint.MemoryRegistry
	view     *dapview.View
	writer   *messageWriter
	// launcher 没有启动被调试进程时为nil
	launcher *launcher.Launcher
	sequence int
}

func NewConsoleHandler(d Debugger, registry *breakpoint.MemoryRegistry, view *dapview.View, writer *messageWriter, l *launcher.Launcher) *ConsoleHandler {
	return &ConsoleHandler{
		debugger: d,
		registry: registry,
		view:     view,
		writer:   writer,
		launcher: l,
	}
}

// handle 处理一行命令，返回true表示用户退出
func (h *ConsoleHandler) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	command, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)
	h.sequence++
	seq := h.sequence
	logrus.Debugf("[Console] command %q, args = %q", command, args)

	switch command {
	case "c", "continue":
		h.handleAction(ctx, seq, "continue", h.debugger.Continue, &dap.ContinueResponse{})
	case "n", "next":
		h.handleAction(ctx, seq, "next", h.debugger.StepOver, &dap.NextResponse{})
	case "s", "step":
		h.handleAction(ctx, seq, "stepIn", h.debugger.StepIn, &dap.StepInResponse{})
	case "o", "out":
		h.handleAction(ctx, seq, "stepOut", h.debugger.StepOut, &dap.StepOutResponse{})
	case "p", "pause":
		h.handleAction(ctx, seq, "pause", h.debugger.Pause, &dap.PauseResponse{})
	case "hook":
		h.handleAction(ctx, seq, "startHook", h.debugger.StartHook, newResponse(seq, "startHook"))
	case "threads":
		h.handleThreads(seq)
	case "bt":
		h.handleStackTrace(seq)
	case "vars":
		h.handleVariables(ctx, seq, args)
	case "inline":
		h.handleInline(ctx, seq, args)
	case "expand":
		h.handleExpand(ctx, seq, args)
	case "eval":
		h.handleEvaluate(ctx, seq, args)
	case "b":
		h.handleAddBreakpoint(ctx, seq, args, false)
	case "lp":
		h.handleAddBreakpoint(ctx, seq, args, true)
	case "rb":
		h.handleRemoveBreakpoint(ctx, seq, args)
	case "run":
		h.handleRunToPosition(ctx, seq, args)
	case "input":
		h.handleSendToConsole(seq, args)
	case "q", "quit":
		h.writer.send(newResponse(seq, "disconnect"))
		return true
	default:
		h.sendErrorResponse(seq, command, fmt.Errorf("%w: %s", e.ErrCommandNotSupported, command))
	}
	return false
}

func (h *ConsoleHandler) sendErrorResponse(seq int, command string, err error) {
	logrus.Warnf("[Console] %s fail, err = %v", command, err)
	h.writer.send(newErrorResponse(seq, command, err.Error()))
}

func (h *ConsoleHandler) handleAction(ctx context.Context, seq int, command string,
	action func(context.Context) error, response dap.ResponseMessage) {
	if err := action(ctx); err != nil {
		h.sendErrorResponse(seq, command, err)
		return
	}
	*response.GetResponse() = *newResponse(seq, command)
	h.writer.send(response)
}

func (h *ConsoleHandler) handleThreads(seq int) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(seq, "threads")
	response.Body.Threads = []dap.Thread{{Id: dapview.ThreadID, Name: "main"}}
	h.writer.send(response)
}

func (h *ConsoleHandler) handleStackTrace(seq int) {
	stack := h.debugger.GetStack()
	if stack == nil {
		h.sendErrorResponse(seq, "stackTrace", errNotSuspended)
		return
	}
	frames := h.view.StackFrames(stack)
	response := &dap.StackTraceResponse{}
	response.Response = *newResponse(seq, "stackTrace")
	response.Body = dap.StackTraceResponseBody{
		StackFrames: frames,
		TotalFrames: len(frames),
	}
	h.writer.send(response)
}

// frame 根据level查找栈帧，level为空时使用当前帧
func (h *ConsoleHandler) frame(level string) (*model.StackFrame, error) {
	stack := h.debugger.GetStack()
	if stack == nil || stack.Current == nil {
		return nil, errNotSuspended
	}
	if level == "" {
		return stack.Current, nil
	}
	n, err := strconv.Atoi(level)
	if err != nil {
		return nil, fmt.Errorf("bad frame level %q", level)
	}
	for _, frame := range stack.Frames {
		if frame.Level() == n {
			return frame, nil
		}
	}
	return nil, fmt.Errorf("frame %d not found", n)
}

func (h *ConsoleHandler) handleVariables(ctx context.Context, seq int, args string) {
	frame, err := h.frame(args)
	if err != nil {
		h.sendErrorResponse(seq, "variables", err)
		return
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(seq, "variables")
	response.Body.Variables = h.view.Variables(frame.Values())
	h.writer.send(response)
}

// handleInline 结果以console输出事件返回
func (h *ConsoleHandler) handleInline(ctx context.Context, seq int, args string) {
	frame, err := h.frame(args)
	if err != nil {
		h.sendErrorResponse(seq, "inlineValues", err)
		return
	}
	h.writer.send(h.view.Inline(ctx, frame.Values()))
}

func (h *ConsoleHandler) handleExpand(ctx context.Context, seq int, args string) {
	ref, err := strconv.Atoi(args)
	if err != nil {
		h.sendErrorResponse(seq, "variables", fmt.Errorf("bad reference %q", args))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, EvalTimeout)
	defer cancel()
	variables, err := h.view.Expand(ctx, ref)
	if err != nil {
		h.sendErrorResponse(seq, "variables", err)
		return
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(seq, "variables")
	response.Body.Variables = variables
	h.writer.send(response)
}

func (h *ConsoleHandler) handleEvaluate(ctx context.Context, seq int, expr string) {
	if expr == "" {
		h.sendErrorResponse(seq, "evaluate", errors.New("expression is empty"))
		return
	}
	frame, err := h.frame("")
	if err != nil {
		h.sendErrorResponse(seq, "evaluate", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, EvalTimeout)
	defer cancel()
	value, err := frame.Evaluate(ctx, expr)
	if err != nil {
		h.sendErrorResponse(seq, "evaluate", err)
		return
	}
	variable := h.view.Variables([]model.Value{value})[0]
	response := &dap.EvaluateResponse{}
	response.Response = *newResponse(seq, "evaluate")
	response.Body = dap.EvaluateResponseBody{
		Result:             variable.Value,
		Type:               variable.Type,
		VariablesReference: variable.VariablesReference,
	}
	h.writer.send(response)
}

// handleAddBreakpoint b file:line [condition]，lp file:line message
func (h *ConsoleHandler) handleAddBreakpoint(ctx context.Context, seq int, args string, logpoint bool) {
	location, rest, _ := strings.Cut(args, " ")
	pos, err := ParsePosition(location)
	if err != nil {
		h.sendErrorResponse(seq, "setBreakpoints", err)
		return
	}
	bp := &breakpoint.Breakpoint{Position: pos}
	if logpoint {
		bp.LogMessage = strings.TrimSpace(rest)
	} else {
		bp.Condition = strings.TrimSpace(rest)
	}
	if err = h.debugger.AddBreakpoint(ctx, bp); err != nil {
		h.sendErrorResponse(seq, "setBreakpoints", err)
		return
	}
	h.registry.Add(bp)
	h.sendBreakpoints(seq, pos.File)
}

func (h *ConsoleHandler) handleRemoveBreakpoint(ctx context.Context, seq int, args string) {
	pos, err := ParsePosition(args)
	if err != nil {
		h.sendErrorResponse(seq, "setBreakpoints", err)
		return
	}
	bp, ok := h.registry.Remove(pos)
	if !ok {
		h.sendErrorResponse(seq, "setBreakpoints", fmt.Errorf("breakpoint %s not found", pos))
		return
	}
	if err = h.debugger.RemoveBreakpoint(ctx, bp); err != nil {
		h.sendErrorResponse(seq, "setBreakpoints", err)
		return
	}
	h.sendBreakpoints(seq, pos.File)
}

// sendBreakpoints 返回文件中当前的全部断点
func (h *ConsoleHandler) sendBreakpoints(seq int, file string) {
	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(seq, "setBreakpoints")
	response.Body.Breakpoints = []dap.Breakpoint{}
	for _, bp := range h.registry.Breakpoints() {
		if !bp.Position.Same(breakpoint.Position{File: file, Line: bp.Line}) {
			continue
		}
		response.Body.Breakpoints = append(response.Body.Breakpoints, dap.Breakpoint{
			Verified: true,
			Line:     bp.Line + 1,
			Source:   &dap.Source{Path: bp.File},
		})
	}
	h.writer.send(response)
}

func (h *ConsoleHandler) handleRunToPosition(ctx context.Context, seq int, args string) {
	pos, err := ParsePosition(args)
	if err != nil {
		h.sendErrorResponse(seq, "runToPosition", err)
		return
	}
	if err = h.debugger.RunToPosition(ctx, pos); err != nil {
		h.sendErrorResponse(seq, "runToPosition", err)
		return
	}
	h.writer.send(newResponse(seq, "runToPosition"))
}

// handleSendToConsole 输入发送给被调试进程的标准输入
func (h *ConsoleHandler) handleSendToConsole(seq int, content string) {
	if h.launcher == nil {
		h.sendErrorResponse(seq, "sendToConsole", errors.New("debuggee is not launched by debugger"))
		return
	}
	if err := h.launcher.Send(content + "\n"); err != nil {
		h.sendErrorResponse(seq, "sendToConsole", err)
		return
	}
	h.writer.send(newResponse(seq, "sendToConsole"))
}
