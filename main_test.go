package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/emmytest"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type console struct {
	t        *testing.T
	in       *io.PipeWriter
	messages chan dap.Message
	done     chan error
}

// startConsole 在后台运行run，通过管道输入命令、读取输出的DAP消息
func startConsole(t *testing.T, config *Config) *console {
	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	c := &console{
		t:        t,
		in:       inWriter,
		messages: make(chan dap.Message, 64),
		done:     make(chan error, 1),
	}
	go func() {
		reader := bufio.NewReader(outReader)
		for {
			message, err := dap.ReadProtocolMessage(reader)
			if err != nil {
				close(c.messages)
				return
			}
			c.messages <- message
		}
	}()
	go func() {
		c.done <- run(context.Background(), config, inReader, outWriter)
		_ = outWriter.Close()
	}()
	return c
}

func (c *console) send(line string) {
	_, err := fmt.Fprintln(c.in, line)
	require.Nil(c.t, err)
}

// waitFor 跳过其他消息，直到收到T类型的消息
func waitFor[T dap.Message](c *console) T {
	timeout := time.After(3 * time.Second)
	for {
		select {
		case message, ok := <-c.messages:
			require.True(c.t, ok, "console output closed")
			if answer, ok := message.(T); ok {
				return answer
			}
		case <-timeout:
			var zero T
			require.FailNow(c.t, fmt.Sprintf("wait for %T timeout", zero))
		}
	}
}

func TestRun_Console(t *testing.T) {
	debuggee, err := emmytest.NewDebuggee(`root = { name = "lua", list = { 1, 2 } }`)
	require.Nil(t, err)
	defer debuggee.Close()
	addr, err := debuggee.Listen("127.0.0.1:0")
	require.Nil(t, err)

	dir := t.TempDir()
	file := filepath.Join(dir, "main.lua")
	require.Nil(t, os.WriteFile(file, []byte("local root = _G.root\nprint(root.name)\n"), 0644))

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = addr.(*net.TCPAddr).Port
	config.SourceRoots = []string{dir}
	config.Breakpoints = []string{file + ":2"}
	c := startConsole(t, config)

	waitFor[*dap.InitializedEvent](c)
	for _, cmd := range []protocol.Command{protocol.InitReq, protocol.AddBreakPointReq, protocol.ReadyReq} {
		r, err := debuggee.Next(3 * time.Second)
		require.Nil(t, err)
		require.Equal(t, cmd, r.Cmd)
	}

	// 运行中没有调用栈
	c.send("bt")
	errResponse := waitFor[*dap.ErrorResponse](c)
	assert.Equal(t, "stackTrace", errResponse.Command)

	require.Nil(t, debuggee.Break(&protocol.DebugStackFrame{
		File:           "main.lua",
		Line:           2,
		FunctionName:   "main",
		LocalVariables: []*protocol.DebugVariable{debuggee.Global("root", 0)},
	}))
	stopped := waitFor[*dap.StoppedEvent](c)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)

	c.send("bt")
	trace := waitFor[*dap.StackTraceResponse](c)
	require.Len(t, trace.Body.StackFrames, 1)
	assert.Equal(t, file, trace.Body.StackFrames[0].Source.Path)
	assert.Equal(t, 2, trace.Body.StackFrames[0].Line)

	c.send("vars")
	vars := waitFor[*dap.VariablesResponse](c)
	require.Len(t, vars.Body.Variables, 1)
	assert.Equal(t, "root", vars.Body.Variables[0].Name)
	require.NotZero(t, vars.Body.Variables[0].VariablesReference)

	// 变量在源码中最近一次出现的位置
	c.send("inline")
	for {
		output := waitFor[*dap.OutputEvent](c)
		if strings.HasPrefix(output.Body.Output, "root = ") {
			assert.True(t, strings.HasSuffix(output.Body.Output, " @ 2:7\n"), output.Body.Output)
			break
		}
	}
	c.send("inline 5")
	assert.Equal(t, "inlineValues", waitFor[*dap.ErrorResponse](c).Command)

	// table子节点通过求值懒加载
	c.send(fmt.Sprintf("expand %d", vars.Body.Variables[0].VariablesReference))
	children := waitFor[*dap.VariablesResponse](c)
	names := make([]string, 0, len(children.Body.Variables))
	for _, v := range children.Body.Variables {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "list")

	c.send("eval root.name")
	result := waitFor[*dap.EvaluateResponse](c)
	assert.Equal(t, "lua", result.Body.Result)

	c.send("eval root.(")
	errResponse = waitFor[*dap.ErrorResponse](c)
	assert.Equal(t, "evaluate", errResponse.Command)

	c.send("b " + file + ":1 root ~= nil")
	set := waitFor[*dap.SetBreakpointsResponse](c)
	assert.Len(t, set.Body.Breakpoints, 2)
	r, err := debuggee.Next(3 * time.Second)
	require.Nil(t, err)
	add := &protocol.AddBreakpointRequest{}
	require.Nil(t, protocol.Decode(r.Payload, add))
	require.Len(t, add.BreakPoints, 1)
	assert.Equal(t, 1, add.BreakPoints[0].Line)
	require.NotNil(t, add.BreakPoints[0].Condition)
	assert.Equal(t, "root ~= nil", *add.BreakPoints[0].Condition)

	c.send("rb " + file + ":1")
	set = waitFor[*dap.SetBreakpointsResponse](c)
	assert.Len(t, set.Body.Breakpoints, 1)
	r, err = debuggee.Next(3 * time.Second)
	require.Nil(t, err)
	assert.Equal(t, protocol.RemoveBreakPointReq, r.Cmd)

	c.send("unknown")
	errResponse = waitFor[*dap.ErrorResponse](c)
	assert.Equal(t, "unknown", errResponse.Command)

	c.send("n")
	waitFor[*dap.NextResponse](c)
	r, err = debuggee.Next(3 * time.Second)
	require.Nil(t, err)
	action := &protocol.ActionRequest{}
	require.Nil(t, protocol.Decode(r.Payload, action))
	assert.Equal(t, protocol.StepOver, action.Action)

	c.send("q")
	waitFor[*dap.TerminatedEvent](c)
	select {
	case err = <-c.done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console not exit")
	}
}

func TestRun_ClientConnectFailed(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	config := DefaultConfig()
	config.Mode = constants.ModeClient
	config.Host = "127.0.0.1"
	config.Port = port
	config.DialTimeout = time.Second
	assert.NotNil(t, run(context.Background(), config, &io.LimitedReader{}, io.Discard))
}

func TestRun_DebuggeeDisconnect(t *testing.T) {
	debuggee, err := emmytest.NewDebuggee("")
	require.Nil(t, err)
	defer debuggee.Close()
	addr, err := debuggee.Listen("127.0.0.1:0")
	require.Nil(t, err)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = addr.(*net.TCPAddr).Port
	c := startConsole(t, config)
	waitFor[*dap.InitializedEvent](c)
	_, err = debuggee.Next(3 * time.Second)
	require.Nil(t, err)

	// client模式下对端断开，会话结束，命令循环退出
	debuggee.Disconnect()
	waitFor[*dap.TerminatedEvent](c)
	select {
	case err = <-c.done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console not exit")
	}
}
