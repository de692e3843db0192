package model

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/fansqz/lua-debugger/constants"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evalCall struct {
	expr       string
	stackLevel int
	cacheID    int
	depth      int
}

type fakeEvaluator struct {
	calls  []evalCall
	result *protocol.DebugVariable
	err    error
}

func (f *fakeEvaluator) EvaluateSync(ctx context.Context, expr string, stackLevel int, cacheID int, depth int) (*protocol.DebugVariable, error) {
	f.calls = append(f.calls, evalCall{expr: expr, stackLevel: stackLevel, cacheID: cacheID, depth: depth})
	return f.result, f.err
}

type memoryLocator struct {
	files map[string]string
}

func (m *memoryLocator) FindFile(path string, roots []string) (string, bool) {
	if _, ok := m.files[path]; ok {
		return path, true
	}
	return "", false
}

func (m *memoryLocator) ReadFile(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

func variable(name string, nameType protocol.ValueType, valueType protocol.ValueType, children ...*protocol.DebugVariable) *protocol.DebugVariable {
	return &protocol.DebugVariable{
		Name:      name,
		NameType:  int(nameType),
		ValueType: int(valueType),
		Children:  children,
	}
}

func TestNewValue_Variants(t *testing.T) {
	cases := []struct {
		valueType protocol.ValueType
		check     func(v Value) bool
	}{
		{protocol.TSTRING, func(v Value) bool { _, ok := v.(*StringValue); return ok }},
		{protocol.TNUMBER, func(v Value) bool { _, ok := v.(*NumberValue); return ok }},
		{protocol.TBOOLEAN, func(v Value) bool { _, ok := v.(*BoolValue); return ok }},
		{protocol.TTABLE, func(v Value) bool { _, ok := v.(*TableValue); return ok }},
		{protocol.TUSERDATA, func(v Value) bool { _, ok := v.(*TableValue); return ok }},
		{protocol.GROUP, func(v Value) bool { _, ok := v.(*GroupValue); return ok }},
		{protocol.TNIL, func(v Value) bool { _, ok := v.(*AnyValue); return ok }},
		{protocol.TFUNCTION, func(v Value) bool { _, ok := v.(*AnyValue); return ok }},
		{protocol.ValueType(42), func(v Value) bool { _, ok := v.(*AnyValue); return ok }},
	}
	for _, c := range cases {
		v := NewValue(variable("x", protocol.TSTRING, c.valueType), nil, nil)
		assert.True(t, c.check(v), c.valueType.String())
	}
}

func TestExpressionPath(t *testing.T) {
	// root -> (group) -> x -> [1] -> y
	tree := variable("root", protocol.TSTRING, protocol.TTABLE,
		variable("locals", protocol.TSTRING, protocol.GROUP,
			variable("x", protocol.TSTRING, protocol.TTABLE,
				variable("1", protocol.TNUMBER, protocol.TTABLE,
					variable("y", protocol.TSTRING, protocol.TNUMBER)))))

	root := NewValue(tree, nil, nil).(*TableValue)
	group := root.children[0].(*GroupValue)
	x := group.children[0].(*TableValue)
	one := x.children[0].(*TableValue)
	y := one.children[0]

	assert.Equal(t, "root", root.ExpressionPath())
	assert.Equal(t, `root["x"]`, x.ExpressionPath())
	assert.Equal(t, `root["x"][1]`, one.ExpressionPath())
	assert.Equal(t, `root["x"][1]["y"]`, y.ExpressionPath())
	assert.Equal(t, "[1]", one.Name())
}

func TestExpressionPath_StringNumberKey(t *testing.T) {
	// t -> (group) -> x -> "1"(字符串key) -> y
	tree := variable("t", protocol.TSTRING, protocol.TTABLE,
		variable("fields", protocol.TSTRING, protocol.GROUP,
			variable("x", protocol.TSTRING, protocol.TTABLE,
				variable("1", protocol.TSTRING, protocol.TTABLE,
					variable("y", protocol.TSTRING, protocol.TNUMBER)))))

	root := NewValue(tree, nil, nil).(*TableValue)
	group := root.children[0].(*GroupValue)
	x := group.children[0].(*TableValue)
	one := x.children[0].(*TableValue)
	y := one.children[0]

	assert.Equal(t, "1", one.Name())
	assert.Equal(t, `t["x"]["1"]`, one.ExpressionPath())
	assert.Equal(t, `t["x"]["1"]["y"]`, y.ExpressionPath())
}

func TestExpressionPath_QuotesKey(t *testing.T) {
	tree := variable("t", protocol.TSTRING, protocol.TTABLE,
		variable(`a"b\c`, protocol.TSTRING, protocol.TSTRING))
	root := NewValue(tree, nil, nil).(*TableValue)
	assert.Equal(t, `t["a\"b\\c"]`, root.children[0].ExpressionPath())
}

func TestSortValues(t *testing.T) {
	values := []Value{
		NewValue(variable("b", protocol.TSTRING, protocol.TNUMBER), nil, nil),
		NewValue(variable("a", protocol.TSTRING, protocol.TSTRING), nil, nil),
		NewValue(variable("z", protocol.TSTRING, protocol.GROUP), nil, nil),
		NewValue(variable("a", protocol.TSTRING, protocol.TBOOLEAN), nil, nil),
	}
	first := values[1]
	SortValues(values)

	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, v.Name())
	}
	assert.Equal(t, []string{"z", "a", "a", "b"}, names)
	// 同名保持原有顺序
	assert.Same(t, first, values[1])
}

func TestTableValue_ChildrenKnown(t *testing.T) {
	evaluator := &fakeEvaluator{}
	frame := NewStackFrame(&protocol.DebugStackFrame{Level: 1}, evaluator, nil, nil)
	table := NewValue(variable("t", protocol.TSTRING, protocol.TTABLE,
		variable("k", protocol.TSTRING, protocol.TNUMBER)), frame, nil).(*TableValue)

	children, err := table.Children(context.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, len(children))
	assert.Empty(t, evaluator.calls)
}

func TestTableValue_ChildrenEvaluated(t *testing.T) {
	evaluator := &fakeEvaluator{
		result: variable("t", protocol.TSTRING, protocol.TTABLE,
			variable("b", protocol.TSTRING, protocol.TNUMBER),
			variable("a", protocol.TSTRING, protocol.TTABLE)),
	}
	frame := NewStackFrame(&protocol.DebugStackFrame{Level: 2}, evaluator, nil, nil)
	v := variable("t", protocol.TSTRING, protocol.TTABLE)
	v.CacheID = 7
	table := NewValue(v, frame, nil).(*TableValue)

	children, err := table.Children(context.Background())
	require.Nil(t, err)
	require.Equal(t, 2, len(children))
	assert.Equal(t, "a", children[0].Name())
	assert.Same(t, table, children[0].Parent())
	assert.Equal(t, `t["a"]`, children[0].ExpressionPath())
	assert.Equal(t, []evalCall{{expr: "t", stackLevel: 2, cacheID: 7, depth: constants.ChildrenEvalDepth}}, evaluator.calls)

	// 只填充一次
	_, err = table.Children(context.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, len(evaluator.calls))
}

func TestTableValue_ChildrenNotTable(t *testing.T) {
	evaluator := &fakeEvaluator{result: variable("t", protocol.TSTRING, protocol.TNIL)}
	frame := NewStackFrame(&protocol.DebugStackFrame{}, evaluator, nil, nil)
	table := NewValue(variable("t", protocol.TSTRING, protocol.TTABLE), frame, nil).(*TableValue)
	_, err := table.Children(context.Background())
	assert.True(t, errors.Is(err, e.ErrNilValue))
	assert.Equal(t, "nil", err.Error())

	evaluator.err = e.ErrEvalFailed
	_, err = table.Children(context.Background())
	assert.True(t, errors.Is(err, e.ErrEvalFailed))
}

func frameAt(file string, line int, locator SourceLocator) *StackFrame {
	return NewStackFrame(&protocol.DebugStackFrame{File: file, Line: line}, nil, locator, nil)
}

func TestSelectCurrent(t *testing.T) {
	locator := &memoryLocator{files: map[string]string{"/src/b.lua": ""}}

	frames := []*StackFrame{
		frameAt("[C]", -1, locator),
		frameAt("/src/b.lua", 3, locator),
		frameAt("/src/c.lua", 8, locator),
	}
	assert.Same(t, frames[1], NewExecutionStack(frames).Current)

	frames = []*StackFrame{
		frameAt("[C]", -1, locator),
		frameAt("/src/x.lua", 5, locator),
		frameAt("/src/y.lua", 6, locator),
	}
	assert.Same(t, frames[1], SelectCurrent(frames))

	frames = []*StackFrame{
		frameAt("[C]", -1, locator),
		frameAt("[C]", 0, locator),
	}
	assert.Same(t, frames[1], SelectCurrent(frames))
	assert.Nil(t, SelectCurrent(nil))
}

func TestStackFrame_PositionAndValues(t *testing.T) {
	source := "local a = 1\nlocal b = a + 1\nprint(a, b)\n"
	locator := &memoryLocator{files: map[string]string{"/src/main.lua": source}}
	frame := NewStackFrame(&protocol.DebugStackFrame{
		File:             "/src/main.lua",
		Line:             3,
		LocalVariables:   []*protocol.DebugVariable{variable("b", protocol.TSTRING, protocol.TNUMBER)},
		UpvalueVariables: []*protocol.DebugVariable{variable("a", protocol.TSTRING, protocol.TNUMBER)},
	}, nil, locator, nil)

	pos, ok := frame.Position()
	require.True(t, ok)
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, "main.lua::3", frame.String())

	values := frame.Values()
	require.Equal(t, 2, len(values))
	assert.Equal(t, "b", values[0].Name())
	assert.Equal(t, "a", values[1].Name())

	at := values[1].SourcePosition(context.Background())
	require.NotNil(t, at)
	assert.Equal(t, "/src/main.lua", at.File)
	assert.Equal(t, 2, at.Line)
	assert.Equal(t, 6, at.Column)

	group := NewValue(variable("g", protocol.TSTRING, protocol.GROUP), frame, nil)
	assert.Nil(t, group.SourcePosition(context.Background()))

	missing := NewValue(variable("zzz", protocol.TSTRING, protocol.TNUMBER), frame, nil)
	assert.Nil(t, missing.SourcePosition(context.Background()))
}

func TestStackFrame_Evaluate(t *testing.T) {
	evaluator := &fakeEvaluator{result: variable("1 + 1", protocol.TSTRING, protocol.TNUMBER)}
	frame := NewStackFrame(&protocol.DebugStackFrame{Level: 3}, evaluator, nil, nil)
	v, err := frame.Evaluate(context.Background(), "1 + 1")
	require.Nil(t, err)
	_, ok := v.(*NumberValue)
	assert.True(t, ok)
	assert.Equal(t, []evalCall{{expr: "1 + 1", stackLevel: 3, depth: constants.DefaultEvalDepth}}, evaluator.calls)
}
