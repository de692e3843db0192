package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	e "github.com/fansqz/lua-debugger/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEncode_TwoLines(t *testing.T) {
	data, err := Encode(&InitRequest{EmmyHelper: "return 1", Ext: []string{".lua"}})
	require.Nil(t, err)

	lines := strings.Split(string(data), "\n")
	require.Equal(t, 3, len(lines))
	assert.Equal(t, "1", lines[0])
	assert.Equal(t, "", lines[2])
	assert.Equal(t, int64(1), gjson.Get(lines[1], "cmd").Int())
	assert.Equal(t, "return 1", gjson.Get(lines[1], "emmyHelper").String())
	assert.Equal(t, ".lua", gjson.Get(lines[1], "ext.0").String())
}

func TestEncode_EmptyPayload(t *testing.T) {
	data, err := Encode(&ReadyRequest{})
	require.Nil(t, err)
	assert.Equal(t, "3\n{\"cmd\":3}\n", string(data))
}

func TestEncode_Breakpoint(t *testing.T) {
	cond := "a > 1"
	data, err := Encode(&AddBreakpointRequest{BreakPoints: []*DebugBreakpoint{
		{File: "/src/main.lua", Line: 10, Condition: &cond},
	}})
	require.Nil(t, err)
	payload := strings.Split(string(data), "\n")[1]
	assert.Equal(t, "/src/main.lua", gjson.Get(payload, "breakPoints.0.file").String())
	assert.Equal(t, int64(10), gjson.Get(payload, "breakPoints.0.line").Int())
	assert.Equal(t, "a > 1", gjson.Get(payload, "breakPoints.0.condition").String())
	// 空字段不出现在json中
	assert.False(t, gjson.Get(payload, "breakPoints.0.logMessage").Exists())
	assert.False(t, gjson.Get(payload, "breakPoints.0.runToHere").Bool())
}

func TestReadMessage(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("13\n{\"stacks\":[]}\r\n15\n{\"type\":1,\"message\":\"hi\"}\n"))
	cmd, payload, err := ReadMessage(r)
	require.Nil(t, err)
	assert.Equal(t, BreakNotify, cmd)
	assert.Equal(t, `{"stacks":[]}`, payload)

	cmd, payload, err = ReadMessage(r)
	require.Nil(t, err)
	assert.Equal(t, LogNotify, cmd)
	log := &LogNotification{}
	require.Nil(t, Decode(payload, log))
	assert.Equal(t, 1, log.Type)
	assert.Equal(t, "hi", log.Message)

	_, _, err = ReadMessage(r)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadMessage_BadCommandLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("abc\n12\n{\"seq\":1}\n"))
	_, _, err := ReadMessage(r)
	assert.True(t, errors.Is(err, e.ErrMalformedPayload))
	// 坏行被丢弃，后续消息仍可读取
	cmd, payload, err := ReadMessage(r)
	require.Nil(t, err)
	assert.Equal(t, EvalRsp, cmd)
	assert.Equal(t, `{"seq":1}`, payload)
}

func TestReadMessage_UnknownCommand(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("99\n{}\n"))
	cmd, _, err := ReadMessage(r)
	require.Nil(t, err)
	assert.Equal(t, Unknown, cmd)
}

func TestDecode_Malformed(t *testing.T) {
	n := &BreakNotification{}
	assert.True(t, errors.Is(Decode("{not json", n), e.ErrMalformedPayload))
	assert.True(t, errors.Is(Decode(`{"stacks":5}`, n), e.ErrMalformedPayload))
}

func TestDecode_EvalResponse(t *testing.T) {
	rsp := &EvalResponse{}
	err := Decode(`{"seq":7,"success":true,"value":{"name":"t","nameType":4,"value":"table: 0x1","valueType":5,"valueTypeName":"table","cacheId":3,"children":null}}`, rsp)
	require.Nil(t, err)
	assert.Equal(t, 7, rsp.Seq)
	assert.True(t, rsp.Success)
	assert.Equal(t, "t", rsp.Value.Name)
	assert.Equal(t, TTABLE, rsp.Value.ValueTypeValue())
	assert.Equal(t, 3, rsp.Value.CacheID)
	assert.False(t, rsp.Value.HasChildren())
}

func TestPeekSeq(t *testing.T) {
	seq, ok := PeekSeq(`{"seq":12,"success":true,"value":{"name":"x"}}`)
	assert.True(t, ok)
	assert.Equal(t, 12, seq)

	// 后面的内容不完整也能取出seq
	seq, ok = PeekSeq(`{"seq":3,"value":{"name":`)
	assert.True(t, ok)
	assert.Equal(t, 3, seq)

	_, ok = PeekSeq(`{"success":true}`)
	assert.False(t, ok)
	_, ok = PeekSeq(`{"seq":"3"}`)
	assert.False(t, ok)
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, Unknown, ParseCommand(-1))
	assert.Equal(t, Unknown, ParseCommand(0))
	assert.Equal(t, InitReq, ParseCommand(1))
	assert.Equal(t, StartHookRsp, ParseCommand(17))
	assert.Equal(t, Unknown, ParseCommand(18))
	assert.Equal(t, "BreakNotify", BreakNotify.String())
}

func TestNextSequence_Monotonic(t *testing.T) {
	a := NextSequence()
	b := NextSequence()
	r := NewEvalRequest("x", 0, 0, 1)
	assert.Greater(t, b, a)
	assert.Greater(t, r.Seq, b)
}

func TestDebugVariable(t *testing.T) {
	v := &DebugVariable{Name: "1", NameType: int(TNUMBER), ValueType: int(TNUMBER)}
	assert.Equal(t, "[1]", v.DisplayName())
	assert.False(t, v.IsFake())

	v = &DebugVariable{Name: "x", NameType: 100, ValueType: int(GROUP)}
	assert.Equal(t, "x", v.DisplayName())
	assert.True(t, v.IsFake())
}
