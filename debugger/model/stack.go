package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/debugger/position"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/sirupsen/logrus"
)

// Evaluator 在被调试进程中求值
type Evaluator interface {
	EvaluateSync(ctx context.Context, expr string, stackLevel int, cacheID int, depth int) (*protocol.DebugVariable, error)
}

// SourceLocator 把被调试进程上报的文件名解析为本地文件
type SourceLocator interface {
	FindFile(path string, roots []string) (string, bool)
	ReadFile(path string) ([]byte, error)
}

// StackFrame 一次暂停中的一个栈帧，暂停结束后丢弃
type StackFrame struct {
	Data *protocol.DebugStackFrame

	evaluator Evaluator
	locator   SourceLocator
	roots     []string

	positionOnce sync.Once
	position     *breakpoint.Position

	indexOnce sync.Once
	index     *position.Index
}

func NewStackFrame(data *protocol.DebugStackFrame, evaluator Evaluator, locator SourceLocator, roots []string) *StackFrame {
	return &StackFrame{
		Data:      data,
		evaluator: evaluator,
		locator:   locator,
		roots:     roots,
	}
}

func (f *StackFrame) Level() int {
	return f.Data.Level
}

// Position 解析后的源码位置，行号从0开始，只解析一次
func (f *StackFrame) Position() (breakpoint.Position, bool) {
	f.positionOnce.Do(func() {
		if f.locator == nil || f.Data.File == "" {
			return
		}
		file, ok := f.locator.FindFile(f.Data.File, f.roots)
		if !ok {
			return
		}
		f.position = &breakpoint.Position{File: file, Line: f.Data.Line - 1}
	})
	if f.position == nil {
		return breakpoint.Position{}, false
	}
	return *f.position, true
}

// Index 当前作用域的变量位置索引，无法解析源码时返回nil
func (f *StackFrame) Index(ctx context.Context) *position.Index {
	f.indexOnce.Do(func() {
		pos, ok := f.Position()
		if !ok {
			return
		}
		content, err := f.locator.ReadFile(pos.File)
		if err != nil {
			logrus.Warnf("[StackFrame] Index read %s fail, err = %v", pos.File, err)
			return
		}
		index, err := position.Build(ctx, content, pos.Line)
		if err != nil {
			logrus.Warnf("[StackFrame] Index build %s fail, err = %v", pos.File, err)
			return
		}
		f.index = index
	})
	return f.index
}

// Values 局部变量在前，upvalue在后
func (f *StackFrame) Values() []Value {
	answer := make([]Value, 0, len(f.Data.LocalVariables)+len(f.Data.UpvalueVariables))
	for _, v := range f.Data.LocalVariables {
		answer = append(answer, NewValue(v, f, nil))
	}
	for _, v := range f.Data.UpvalueVariables {
		answer = append(answer, NewValue(v, f, nil))
	}
	return answer
}

// Evaluate 在当前栈帧上求值
func (f *StackFrame) Evaluate(ctx context.Context, expr string) (Value, error) {
	if f.evaluator == nil {
		return nil, fmt.Errorf("evaluate %s: no evaluator", expr)
	}
	v, err := f.evaluator.EvaluateSync(ctx, expr, f.Level(), 0, constants.DefaultEvalDepth)
	if err != nil {
		return nil, err
	}
	return NewValue(v, f, nil), nil
}

func (f *StackFrame) String() string {
	return fmt.Sprintf("%s:%s:%d", filepath.Base(f.Data.File), f.Data.FunctionName, f.Data.Line)
}

// ExecutionStack 一次暂停的调用栈，Frames[0]是最内层
type ExecutionStack struct {
	Frames  []*StackFrame
	Current *StackFrame
}

func NewExecutionStack(frames []*StackFrame) *ExecutionStack {
	return &ExecutionStack{
		Frames:  frames,
		Current: SelectCurrent(frames),
	}
}

// SelectCurrent 第一个能找到源码的帧，其次第一个行号大于0的帧，都没有时取最外层
func SelectCurrent(frames []*StackFrame) *StackFrame {
	if len(frames) == 0 {
		return nil
	}
	for _, frame := range frames {
		if _, ok := frame.Position(); ok {
			return frame
		}
	}
	for _, frame := range frames {
		if frame.Data.Line > 0 {
			return frame
		}
	}
	return frames[len(frames)-1]
}
