// Package dapview 把调试会话的事件、调用栈和变量转换成DAP消息
package dapview

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger"
	"github.com/fansqz/lua-debugger/debugger/model"
	"github.com/google/go-dap"
)

// ThreadID lua只有一个调试线程
const ThreadID = 1

type View struct {
	seq     atomic.Int64
	handles *Handles
}

func NewView() *View {
	return &View{handles: NewHandles()}
}

func (v *View) NewEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  int(v.seq.Add(1)),
			Type: "event",
		},
		Event: event,
	}
}

// Event 会话事件转换成DAP事件，不需要展示的返回nil
func (v *View) Event(event interface{}) dap.Message {
	switch ev := event.(type) {
	case *debugger.ConnectedEvent:
		return &dap.InitializedEvent{Event: *v.NewEvent("initialized")}
	case *debugger.StoppedEvent:
		v.handles.Reset()
		reason := "step"
		if ev.Reason == constants.BreakpointStopped {
			reason = "breakpoint"
		}
		body := dap.StoppedEventBody{Reason: reason, ThreadId: ThreadID, AllThreadsStopped: true}
		if ev.Stack != nil && ev.Stack.Current != nil {
			body.Description = ev.Stack.Current.String()
		}
		return &dap.StoppedEvent{Event: *v.NewEvent("stopped"), Body: body}
	case *debugger.ContinuedEvent:
		v.handles.Reset()
		return &dap.ContinuedEvent{
			Event: *v.NewEvent("continued"),
			Body:  dap.ContinuedEventBody{ThreadId: ThreadID, AllThreadsContinued: true},
		}
	case *debugger.OutputEvent:
		return v.output("stdout", ev.Output)
	case *debugger.LogEvent:
		category := "console"
		if ev.Type == constants.LogError {
			category = "stderr"
		}
		return v.output(category, fmt.Sprintf("[%s] %s\n", ev.Type, ev.Message))
	case *debugger.AttachedEvent:
		return v.output("console", fmt.Sprintf("attached, state = %d\n", ev.State))
	case *debugger.DisconnectedEvent:
		v.handles.Reset()
		return v.output("console", "debuggee disconnected, waiting for connection\n")
	case *debugger.ErrorEvent:
		message := ev.Message
		if ev.Err != nil {
			message = fmt.Sprintf("%s: %v", ev.Message, ev.Err)
		}
		return v.output("stderr", message+"\n")
	case *debugger.TerminatedEvent:
		return &dap.TerminatedEvent{Event: *v.NewEvent("terminated")}
	}
	return nil
}

func (v *View) output(category string, output string) *dap.OutputEvent {
	return &dap.OutputEvent{
		Event: *v.NewEvent("output"),
		Body:  dap.OutputEventBody{Category: category, Output: output},
	}
}

// StackFrames 栈帧id使用level，行号保持从1开始
func (v *View) StackFrames(stack *model.ExecutionStack) []dap.StackFrame {
	if stack == nil {
		return []dap.StackFrame{}
	}
	answer := make([]dap.StackFrame, 0, len(stack.Frames))
	for _, frame := range stack.Frames {
		path := frame.Data.File
		if pos, ok := frame.Position(); ok {
			path = pos.File
		}
		answer = append(answer, dap.StackFrame{
			Id:   frame.Level(),
			Name: frame.Data.FunctionName,
			Line: frame.Data.Line,
			Source: &dap.Source{
				Name: filepath.Base(path),
				Path: path,
			},
		})
	}
	return answer
}

// Variables 可展开的值分配引用，分组节点没有EvaluateName
func (v *View) Variables(values []model.Value) []dap.Variable {
	answer := make([]dap.Variable, 0, len(values))
	for _, value := range values {
		variable := value.Variable()
		item := dap.Variable{
			Name:  value.Name(),
			Value: variable.Value,
			Type:  variable.ValueTypeName,
		}
		if !variable.IsFake() {
			item.EvaluateName = value.ExpressionPath()
		}
		if composite, ok := value.(model.Composite); ok {
			item.VariablesReference = v.handles.Create(composite)
		}
		answer = append(answer, item)
	}
	return answer
}

// Expand 展开引用对应的值
func (v *View) Expand(ctx context.Context, reference int) ([]dap.Variable, error) {
	composite, ok := v.handles.Get(reference)
	if !ok {
		return nil, fmt.Errorf("reference %d not found", reference)
	}
	children, err := composite.Children(ctx)
	if err != nil {
		return nil, err
	}
	return v.Variables(children), nil
}

// Inline 变量在源码中的位置，每行 name = value @ line:col，行列从1开始
func (v *View) Inline(ctx context.Context, values []model.Value) *dap.OutputEvent {
	var builder strings.Builder
	for _, value := range values {
		if value.Variable().IsFake() {
			continue
		}
		pos := value.SourcePosition(ctx)
		if pos == nil {
			continue
		}
		fmt.Fprintf(&builder, "%s = %s @ %d:%d\n", value.Name(), value.Variable().Value, pos.Line+1, pos.Column+1)
	}
	return v.output("console", builder.String())
}
