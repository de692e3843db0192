// Package emmytest 测试用的被调试进程。
// 实现Emmy协议的被调试端，求值请求在gopher-lua虚拟机中执行
package emmytest

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/fansqz/lua-debugger/protocol"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// Received 被调试端收到的消息，求值请求自动应答，不会出现在这里
type Received struct {
	Cmd     protocol.Command
	Payload string
}

// Debuggee 一个被调试进程，同一时间只有一个连接
type Debuggee struct {
	luaLock sync.Mutex
	L       *lua.LState

	connLock sync.Mutex
	conn     net.Conn
	listener net.Listener

	received chan Received
}

// NewDebuggee 执行script初始化全局变量
func NewDebuggee(script string) (*Debuggee, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, err
	}
	return &Debuggee{
		L:        L,
		received: make(chan Received, 64),
	}, nil
}

// Listen 等待调试器连接，返回实际监听的地址
func (d *Debuggee) Listen(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	d.connLock.Lock()
	d.listener = listener
	d.connLock.Unlock()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		d.serve(conn)
	}()
	return listener.Addr(), nil
}

// Dial 主动连接监听中的调试器
func (d *Debuggee) Dial(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return err
	}
	go d.serve(conn)
	return nil
}

func (d *Debuggee) serve(conn net.Conn) {
	d.connLock.Lock()
	d.conn = conn
	d.connLock.Unlock()

	reader := bufio.NewReader(conn)
	for {
		cmd, payload, err := protocol.ReadMessage(reader)
		if err != nil {
			return
		}
		if cmd == protocol.EvalReq {
			d.handleEval(payload)
			continue
		}
		d.received <- Received{Cmd: cmd, Payload: payload}
	}
}

// Next 下一条收到的消息
func (d *Debuggee) Next(timeout time.Duration) (Received, error) {
	select {
	case r := <-d.received:
		return r, nil
	case <-time.After(timeout):
		return Received{}, errors.New("wait message timeout")
	}
}

// Send 发送一条通知，payload自动带上cmd字段
func (d *Debuggee) Send(cmd protocol.Command, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.connLock.Lock()
	defer d.connLock.Unlock()
	if d.conn == nil {
		return errors.New("not connected")
	}
	_, err = fmt.Fprintf(d.conn, "%d\n%s\n", cmd, data)
	return err
}

// Break 模拟暂停
func (d *Debuggee) Break(stacks ...*protocol.DebugStackFrame) error {
	return d.Send(protocol.BreakNotify, &protocol.BreakNotification{Stacks: stacks})
}

// Global 把全局变量转换成协议变量，用于构造栈帧
func (d *Debuggee) Global(name string, depth int) *protocol.DebugVariable {
	d.luaLock.Lock()
	defer d.luaLock.Unlock()
	return toVariable(name, protocol.TSTRING, d.L.GetGlobal(name), depth)
}

// Disconnect 断开当前连接，之后可以重新Dial
func (d *Debuggee) Disconnect() {
	d.connLock.Lock()
	defer d.connLock.Unlock()
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *Debuggee) Close() {
	d.Disconnect()
	d.connLock.Lock()
	if d.listener != nil {
		_ = d.listener.Close()
	}
	d.connLock.Unlock()
	d.luaLock.Lock()
	d.L.Close()
	d.luaLock.Unlock()
}

func (d *Debuggee) handleEval(payload string) {
	req := &protocol.EvalRequest{}
	if err := protocol.Decode(payload, req); err != nil {
		logrus.Errorf("[Debuggee] decode eval request fail, err = %v", err)
		return
	}
	rsp := &protocol.EvalResponse{Seq: req.Seq}
	value, err := d.eval(req.Expr)
	if err != nil {
		rsp.Error = err.Error()
	} else {
		rsp.Success = true
		rsp.Value = toVariable(req.Expr, protocol.TSTRING, value, req.Depth)
		rsp.Value.CacheID = req.CacheID
	}
	if err = d.Send(protocol.EvalRsp, rsp); err != nil {
		logrus.Errorf("[Debuggee] send eval response fail, err = %v", err)
	}
}

func (d *Debuggee) eval(expr string) (lua.LValue, error) {
	d.luaLock.Lock()
	defer d.luaLock.Unlock()
	fn, err := d.L.LoadString("return " + expr)
	if err != nil {
		return nil, err
	}
	d.L.Push(fn)
	if err = d.L.PCall(0, 1, nil); err != nil {
		return nil, err
	}
	value := d.L.Get(-1)
	d.L.Pop(1)
	return value, nil
}

// toVariable depth为展开的层数，0表示不带子节点
func toVariable(name string, nameType protocol.ValueType, lv lua.LValue, depth int) *protocol.DebugVariable {
	v := &protocol.DebugVariable{
		Name:     name,
		NameType: int(nameType),
		Value:    lv.String(),
	}
	var valueType protocol.ValueType
	switch value := lv.(type) {
	case *lua.LNilType:
		valueType = protocol.TNIL
	case lua.LBool:
		valueType = protocol.TBOOLEAN
	case lua.LNumber:
		valueType = protocol.TNUMBER
	case lua.LString:
		valueType = protocol.TSTRING
	case *lua.LTable:
		valueType = protocol.TTABLE
		v.Value = "table"
		if depth > 0 {
			v.Children = tableChildren(value, depth-1)
		}
	case *lua.LFunction:
		valueType = protocol.TFUNCTION
	case *lua.LUserData:
		valueType = protocol.TUSERDATA
	default:
		valueType = protocol.TTHREAD
	}
	v.ValueType = int(valueType)
	v.ValueTypeName = valueType.String()
	return v
}

func tableChildren(table *lua.LTable, depth int) []*protocol.DebugVariable {
	var children []*protocol.DebugVariable
	table.ForEach(func(key, value lua.LValue) {
		keyType := protocol.TSTRING
		if _, ok := key.(lua.LNumber); ok {
			keyType = protocol.TNUMBER
		}
		children = append(children, toVariable(key.String(), keyType, value, depth))
	})
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
	return children
}
