package model

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/protocol"
)

// Value 变量树中的一个节点
type Value interface {
	Variable() *protocol.DebugVariable
	// Name 显示名，非字符串key显示为[name]
	Name() string
	Parent() Value
	Frame() *StackFrame
	// ExpressionPath 在被调试进程中访问该值的lua表达式
	ExpressionPath() string
	// SourcePosition 离暂停行最近的出现位置，没有时返回nil
	SourcePosition(ctx context.Context) *breakpoint.Position

	value()
}

// Composite 可以展开的值
type Composite interface {
	Value
	Children(ctx context.Context) ([]Value, error)
}

type baseValue struct {
	variable *protocol.DebugVariable
	frame    *StackFrame
	parent   Value
}

func (v *baseValue) Variable() *protocol.DebugVariable { return v.variable }
func (v *baseValue) Name() string { return v.variable.DisplayName() }
func (v *baseValue) Parent() Value { return v.parent }
func (v *baseValue) Frame() *StackFrame { return v.frame }
func (v *baseValue) value() {}

func (v *baseValue) ExpressionPath() string {
	return expressionPath(v.Name(), v.parent)
}

func (v *baseValue) SourcePosition(ctx context.Context) *breakpoint.Position {
	if v.frame == nil {
		return nil
	}
	pos, ok := v.frame.Position()
	if !ok {
		return nil
	}
	index := v.frame.Index(ctx)
	if index == nil {
		return nil
	}
	occurrence, ok := index.Last(v.variable.Name)
	if !ok {
		return nil
	}
	return &breakpoint.Position{File: pos.File, Line: occurrence.Line, Column: occurrence.Column}
}

type StringValue struct{ baseValue }

type NumberValue struct{ baseValue }

type BoolValue struct{ baseValue }

// AnyValue nil、function、thread等
type AnyValue struct{ baseValue }

// GroupValue 只用于界面分组，不能求值，子节点在创建时就已知
type GroupValue struct {
	baseValue
	children []Value
}

func (v *GroupValue) Children(ctx context.Context) ([]Value, error) {
	return v.children, nil
}

func (v *GroupValue) SourcePosition(ctx context.Context) *breakpoint.Position {
	return nil
}

// TableValue table和userdata，子节点未知时展开会重新求值，只填充一次
type TableValue struct {
	baseValue

	mutex    sync.Mutex
	filled   bool
	children []Value
}

func (v *TableValue) Children(ctx context.Context) ([]Value, error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if v.filled {
		return v.children, nil
	}
	if v.frame == nil || v.frame.evaluator == nil {
		return nil, e.ErrNilValue
	}
	result, err := v.frame.evaluator.EvaluateSync(ctx, v.ExpressionPath(), v.frame.Level(),
		v.variable.CacheID, constants.ChildrenEvalDepth)
	if err != nil {
		return nil, err
	}
	if result == nil || !isTable(result.ValueTypeValue()) {
		return nil, e.ErrNilValue
	}
	v.children = newChildren(result.Children, v.frame, v)
	v.filled = true
	return v.children, nil
}

func isTable(t protocol.ValueType) bool {
	return t == protocol.TTABLE || t == protocol.TUSERDATA
}

// NewValue 按值类型创建节点
func NewValue(variable *protocol.DebugVariable, frame *StackFrame, parent Value) Value {
	base := baseValue{variable: variable, frame: frame, parent: parent}
	switch variable.ValueTypeValue() {
	case protocol.TSTRING:
		return &StringValue{baseValue: base}
	case protocol.TNUMBER:
		return &NumberValue{baseValue: base}
	case protocol.TBOOLEAN:
		return &BoolValue{baseValue: base}
	case protocol.TTABLE, protocol.TUSERDATA:
		table := &TableValue{baseValue: base}
		if variable.HasChildren() {
			table.children = newChildren(variable.Children, frame, table)
			table.filled = true
		}
		return table
	case protocol.GROUP:
		group := &GroupValue{baseValue: base}
		group.children = newChildren(variable.Children, frame, group)
		return group
	case protocol.TNIL, protocol.TLIGHTUSERDATA, protocol.TFUNCTION, protocol.TTHREAD:
		return &AnyValue{baseValue: base}
	default:
		return &AnyValue{baseValue: base}
	}
}

func newChildren(variables []*protocol.DebugVariable, frame *StackFrame, parent Value) []Value {
	answer := make([]Value, 0, len(variables))
	for _, child := range variables {
		answer = append(answer, NewValue(child, frame, parent))
	}
	SortValues(answer)
	return answer
}

// SortValues 伪造的节点在前，其余按显示名升序，稳定排序
func SortValues(values []Value) {
	sort.SliceStable(values, func(i, j int) bool {
		fi, fj := values[i].Variable().IsFake(), values[j].Variable().IsFake()
		if fi != fj {
			return fi
		}
		return values[i].Name() < values[j].Name()
	})
}

// expressionPath 沿父节点向上拼接，跳过分组等伪造节点。
// 字符串key写成["key"]，[n]形式的直接拼接
func expressionPath(name string, parent Value) string {
	var properties []string
	for ; parent != nil; parent = parent.Parent() {
		if parent.Variable().IsFake() {
			continue
		}
		properties = append(properties, name)
		name = parent.Name()
	}
	var sb strings.Builder
	sb.WriteString(name)
	for i := len(properties) - 1; i >= 0; i-- {
		property := properties[i]
		if strings.HasPrefix(property, "[") {
			sb.WriteString(property)
			continue
		}
		sb.WriteString(`["`)
		sb.WriteString(quoteKey(property))
		sb.WriteString(`"]`)
	}
	return sb.String()
}

var keyReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quoteKey(key string) string {
	return keyReplacer.Replace(key)
}
