package debugger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/debugger/model"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/fansqz/lua-debugger/transport"
	"github.com/fansqz/lua-debugger/utils"
	"github.com/fansqz/lua-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
)

// DebugSession 与一个被调试进程之间的调试会话
type DebugSession struct {
	id            string
	option        *StartOption
	statusManager *utils.StatusManager
	callback      NotificationCallback
	locator       SourceLocator

	transport   transport.Transport
	breakpoints *breakpoint.Manager

	// evalHandlers seq -> EvalCallback，响应到达时取出并删除
	evalLock     sync.Mutex
	evalHandlers map[int]EvalCallback

	stackLock sync.RWMutex
	stack     *model.ExecutionStack

	started  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
}

var _ Debugger = (*DebugSession)(nil)

func NewDebugSession() *DebugSession {
	return &DebugSession{
		id:            utils.GetUUID(),
		statusManager: utils.NewStatusManager(),
		evalHandlers:  make(map[int]EvalCallback),
	}
}

func (s *DebugSession) Start(ctx context.Context, option *StartOption) error {
	if !s.started.CompareAndSwap(false, true) {
		return e.ErrSessionStarted
	}
	logrus.Infof("[DebugSession] Start, id = %s, mode = %s, address = %s:%d", s.id, option.Mode, option.Host, option.Port)
	s.option = option
	s.callback = option.Callback
	s.locator = option.Locator
	if s.locator == nil {
		s.locator = NewFileSystemLocator(option.Extensions)
	}
	s.breakpoints = breakpoint.NewManager(option.Registry, s.send)

	tr := option.Transport
	if tr == nil {
		var err error
		tr, err = transport.New(option.Mode, option.Host, option.Port, &transport.Option{
			DialTimeout:  option.DialTimeout,
			DrainTimeout: option.DrainTimeout,
		})
		if err != nil {
			s.statusManager.Set(constants.Stopped)
			return err
		}
	}
	s.transport = tr
	s.statusManager.Set(constants.Connecting)
	tr.SetHandler(&transportHandler{session: s})
	return tr.Connect(ctx)
}

func (s *DebugSession) Continue(ctx context.Context) error {
	return s.action(protocol.Continue)
}

func (s *DebugSession) Pause(ctx context.Context) error {
	return s.action(protocol.Break)
}

func (s *DebugSession) StepOver(ctx context.Context) error {
	return s.action(protocol.StepOver)
}

func (s *DebugSession) StepIn(ctx context.Context) error {
	return s.action(protocol.StepIn)
}

func (s *DebugSession) StepOut(ctx context.Context) error {
	return s.action(protocol.StepOut)
}

// RunToPosition 添加一个runToHere断点后继续执行，断点由被调试进程负责删除
func (s *DebugSession) RunToPosition(ctx context.Context, pos breakpoint.Position) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	wire := breakpoint.ToDebugBreakpoint(&breakpoint.Breakpoint{Position: pos})
	if wire == nil {
		return fmt.Errorf("%w: %s", e.ErrFileNotFound, pos)
	}
	wire.RunToHere = true
	logrus.Infof("[DebugSession] RunToPosition %s:%d", wire.File, wire.Line)
	s.send(&protocol.AddBreakpointRequest{BreakPoints: []*protocol.DebugBreakpoint{wire}})
	return s.action(protocol.Continue)
}

func (s *DebugSession) StartHook(ctx context.Context) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.send(&protocol.StartHookRequest{})
	return nil
}

func (s *DebugSession) AddBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	s.breakpoints.OnBreakpointAdded(bp.Position, bp)
	return nil
}

func (s *DebugSession) RemoveBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	s.breakpoints.OnBreakpointRemoved(bp.Position, bp)
	return nil
}

func (s *DebugSession) Evaluate(expr string, stackLevel int, cacheID int, depth int, callback EvalCallback) {
	s.evaluate(expr, stackLevel, cacheID, depth, callback)
}

func (s *DebugSession) EvaluateSync(ctx context.Context, expr string, stackLevel int, cacheID int, depth int) (*protocol.DebugVariable, error) {
	type result struct {
		value *protocol.DebugVariable
		err   error
	}
	ch := make(chan result, 1)
	seq := s.evaluate(expr, stackLevel, cacheID, depth, func(value *protocol.DebugVariable, err error) {
		ch <- result{value: value, err: err}
	})
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		s.removeEvalHandler(seq)
		return nil, ctx.Err()
	}
}

// evaluate 登记回调后发送请求，返回序列号，无法发送时立即回调错误
func (s *DebugSession) evaluate(expr string, stackLevel int, cacheID int, depth int, callback EvalCallback) int {
	if err := s.checkConnected(); err != nil {
		callback(nil, err)
		return -1
	}
	req := protocol.NewEvalRequest(expr, stackLevel, cacheID, depth)
	s.evalLock.Lock()
	s.evalHandlers[req.Seq] = callback
	s.evalLock.Unlock()
	s.send(req)
	return req.Seq
}

func (s *DebugSession) removeEvalHandler(seq int) {
	s.evalLock.Lock()
	defer s.evalLock.Unlock()
	delete(s.evalHandlers, seq)
}

// failPendingEvals 断开或停止时让所有等待中的求值失败
func (s *DebugSession) failPendingEvals(err error) {
	s.evalLock.Lock()
	handlers := s.evalHandlers
	s.evalHandlers = make(map[int]EvalCallback)
	s.evalLock.Unlock()
	for _, callback := range handlers {
		callback(nil, err)
	}
}

func (s *DebugSession) GetStack() *model.ExecutionStack {
	s.stackLock.RLock()
	defer s.stackLock.RUnlock()
	return s.stack
}

func (s *DebugSession) setStack(stack *model.ExecutionStack) {
	s.stackLock.Lock()
	defer s.stackLock.Unlock()
	s.stack = stack
}

func (s *DebugSession) Status() constants.SessionStatus {
	return s.statusManager.Get()
}

// Stop 幂等。先发送Stop命令，传输层会在关闭前把它写出去
func (s *DebugSession) Stop() {
	s.stopping.Store(true)
	s.stopOnce.Do(func() {
		logrus.Infof("[DebugSession] Stop, id = %s", s.id)
		if s.transport != nil {
			s.transport.Send(protocol.NewActionRequest(protocol.Stop))
			s.transport.Stop()
		}
		if s.breakpoints != nil {
			s.breakpoints.Clear()
		}
		s.failPendingEvals(e.ErrDebuggerIsClosed)
		s.setStack(nil)
		s.statusManager.Set(constants.Stopped)
		s.notify(&TerminatedEvent{})
	})
}

func (s *DebugSession) action(action protocol.Action) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	logrus.Infof("[DebugSession] action %s", action)
	s.send(protocol.NewActionRequest(action))
	if action == protocol.Break {
		return nil
	}
	if s.statusManager.Transition(constants.Running, constants.Suspended) {
		s.setStack(nil)
		s.notify(&ContinuedEvent{})
	}
	return nil
}

func (s *DebugSession) checkStarted() error {
	if s.stopping.Load() || s.statusManager.Is(constants.Stopped) {
		return e.ErrDebuggerIsClosed
	}
	if !s.started.Load() {
		return e.ErrNotConnected
	}
	return nil
}

func (s *DebugSession) checkConnected() error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	if s.transport == nil || !s.transport.IsConnected() {
		return e.ErrNotConnected
	}
	return nil
}

func (s *DebugSession) send(msg protocol.Message) {
	if s.transport == nil {
		return
	}
	s.transport.Send(msg)
}

func (s *DebugSession) notify(event interface{}) {
	if s.callback == nil {
		return
	}
	gosync.Safe(func() { s.callback(event) })
}

// onConnect 握手顺序不能变：helper代码、断点、ready。
// 被调试进程收到ready后可能马上开始执行
func (s *DebugSession) onConnect(success bool) {
	if !success {
		s.notify(&ErrorEvent{Message: "Failed to connect to debuggee"})
		s.Stop()
		return
	}
	if !s.statusManager.Transition(constants.Connected) {
		return
	}
	// 新的对端替换旧连接时，旧连接上的求值不会再有响应
	s.setStack(nil)
	s.failPendingEvals(e.ErrDisconnected)
	s.notify(&ConnectedEvent{Mode: s.option.Mode})

	s.send(&protocol.InitRequest{EmmyHelper: s.readHelper(), Ext: s.extensions()})
	s.breakpoints.Clear()
	s.breakpoints.InitializeBreakpoints()
	s.send(&protocol.ReadyRequest{})

	s.statusManager.Transition(constants.Ready, constants.Connected)
	s.statusManager.Transition(constants.Running, constants.Ready)
	logrus.Infof("[DebugSession] handshake done, id = %s", s.id)
}

func (s *DebugSession) readHelper() string {
	if s.option.HelperFile == "" {
		return ""
	}
	data, err := os.ReadFile(s.option.HelperFile)
	if err != nil {
		logrus.Errorf("[DebugSession] helper file not found, file = %s, err = %v", s.option.HelperFile, err)
		return ""
	}
	return string(data)
}

func (s *DebugSession) extensions() []string {
	if len(s.option.Extensions) == 0 {
		return DefaultExtensions
	}
	return s.option.Extensions
}

// onDisconnect client模式直接结束会话，server模式回到Disconnected等待下一次连接
func (s *DebugSession) onDisconnect() {
	if s.stopping.Load() || s.statusManager.Is(constants.Stopped) {
		return
	}
	if s.option.Mode != constants.ModeServer {
		s.Stop()
		return
	}
	logrus.Infof("[DebugSession] debuggee disconnected, waiting for next connection")
	s.statusManager.Transition(constants.Disconnected)
	s.setStack(nil)
	s.failPendingEvals(e.ErrDisconnected)
	s.notify(&DisconnectedEvent{})
}

func (s *DebugSession) onMessage(cmd protocol.Command, payload string) {
	ok := gosync.Safe(func() {
		switch cmd {
		case protocol.BreakNotify:
			s.handleBreakNotification(payload)
		case protocol.EvalRsp:
			s.handleEvalResponse(payload)
		case protocol.LogNotify:
			s.handleLogNotification(payload)
		case protocol.AttachedNotify:
			s.handleAttachedNotification(payload)
		default:
			logrus.Warnf("[DebugSession] unhandled command: %s", cmd)
		}
	})
	if !ok {
		s.notify(&ErrorEvent{Message: fmt.Sprintf("Error handling message: %s", cmd)})
	}
}

func (s *DebugSession) handleBreakNotification(payload string) {
	notification := &protocol.BreakNotification{}
	if err := protocol.Decode(payload, notification); err != nil {
		logrus.Errorf("[DebugSession] decode break notification fail, err = %v", err)
		return
	}
	frames := make([]*model.StackFrame, 0, len(notification.Stacks))
	for _, data := range notification.Stacks {
		frames = append(frames, model.NewStackFrame(data, s, s.locator, s.option.SourceRoots))
	}
	stack := model.NewExecutionStack(frames)
	if stack.Current == nil {
		logrus.Warnf("[DebugSession] no valid stack frame found")
		return
	}
	logrus.Infof("[DebugSession] break at %s:%d", stack.Current.Data.File, stack.Current.Data.Line)

	reason := constants.PositionStopped
	var bp *breakpoint.Breakpoint
	if pos, ok := stack.Current.Position(); ok {
		if bp = s.breakpoints.GetBreakpoint(pos); bp != nil {
			reason = constants.BreakpointStopped
		}
	}
	s.setStack(stack)
	s.statusManager.Transition(constants.Suspended)
	s.notify(NewStoppedEvent(reason, stack, bp))
}

func (s *DebugSession) handleEvalResponse(payload string) {
	seq, ok := protocol.PeekSeq(payload)
	if !ok {
		logrus.Errorf("[DebugSession] eval response without seq, payload = %s", payload)
		return
	}
	s.evalLock.Lock()
	callback, ok := s.evalHandlers[seq]
	delete(s.evalHandlers, seq)
	s.evalLock.Unlock()
	if !ok {
		logrus.Warnf("[DebugSession] no handler for eval response seq=%d", seq)
		return
	}
	response := &protocol.EvalResponse{}
	if err := protocol.Decode(payload, response); err != nil {
		logrus.Errorf("[DebugSession] decode eval response fail, err = %v", err)
		callback(nil, err)
		return
	}
	if response.Success && response.Value != nil {
		callback(response.Value, nil)
		return
	}
	message := response.Error
	if message == "" {
		message = "Unknown error"
	}
	callback(nil, fmt.Errorf("%w: %s", e.ErrEvalFailed, message))
}

func (s *DebugSession) handleLogNotification(payload string) {
	notification := &protocol.LogNotification{}
	if err := protocol.Decode(payload, notification); err != nil {
		logrus.Errorf("[DebugSession] decode log notification fail, err = %v", err)
		return
	}
	logType := constants.LogType(notification.Type)
	switch logType {
	case constants.LogWarning:
		logrus.Warnf("[Debuggee] %s", notification.Message)
	case constants.LogError:
		logrus.Errorf("[Debuggee] %s", notification.Message)
	default:
		logType = constants.LogInfo
		logrus.Infof("[Debuggee] %s", notification.Message)
	}
	s.notify(&LogEvent{Type: logType, Message: notification.Message})
}

func (s *DebugSession) handleAttachedNotification(payload string) {
	notification := &protocol.AttachedNotification{}
	if err := protocol.Decode(payload, notification); err != nil {
		logrus.Errorf("[DebugSession] decode attached notification fail, err = %v", err)
		return
	}
	s.notify(&AttachedEvent{State: notification.State})
}

// transportHandler 把传输层事件转给会话
type transportHandler struct {
	session *DebugSession
}

func (h *transportHandler) OnConnect(success bool) {
	h.session.onConnect(success)
}

func (h *transportHandler) OnDisconnect() {
	h.session.onDisconnect()
}

func (h *transportHandler) OnMessage(cmd protocol.Command, payload string) {
	h.session.onMessage(cmd, payload)
}

func (h *transportHandler) OnError(message string, err error) {
	h.session.notify(&ErrorEvent{Message: message, Err: err})
}

func (h *transportHandler) OnLog(message string) {
	logrus.Debugf("[DebugSession] transport: %s", message)
}
