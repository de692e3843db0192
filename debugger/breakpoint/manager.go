package breakpoint

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	godsutils "github.com/emirpasic/gods/utils"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/sirupsen/logrus"
)

// SendFunc 发送断点请求
type SendFunc func(msg protocol.Message)

type entry struct {
	breakpoint *Breakpoint
	wire       *protocol.DebugBreakpoint
}

// Manager 维护用户断点与协议断点的对应关系，并同步给被调试进程。
// 断点id只在本端使用，被调试进程按(file, line)匹配
type Manager struct {
	registry Registry
	send     SendFunc

	mutex     sync.Mutex
	idCounter int
	// byID id -> *entry，按id有序
	byID           *treemap.Map
	idByBreakpoint map[*Breakpoint]int
}

func NewManager(registry Registry, send SendFunc) *Manager {
	return &Manager{
		registry:       registry,
		send:           send,
		byID:           treemap.NewWith(godsutils.IntComparator),
		idByBreakpoint: make(map[*Breakpoint]int),
	}
}

// InitializeBreakpoints 握手时调用，所有断点合并成一个请求发送
func (m *Manager) InitializeBreakpoints() {
	if m.registry == nil {
		return
	}
	breakpoints := m.registry.Breakpoints()
	logrus.Infof("[Manager] InitializeBreakpoints, count = %d", len(breakpoints))

	m.mutex.Lock()
	wires := make([]*protocol.DebugBreakpoint, 0, len(breakpoints))
	for _, bp := range breakpoints {
		wire := ToDebugBreakpoint(bp)
		if wire == nil {
			continue
		}
		id := m.register(bp, wire)
		logrus.Infof("[Manager] registered breakpoint %s:%d (ID: %d)", wire.File, wire.Line, id)
		wires = append(wires, wire)
	}
	m.mutex.Unlock()

	if len(wires) > 0 {
		m.send(&protocol.AddBreakpointRequest{BreakPoints: wires})
	}
}

// OnBreakpointAdded 单个断点立即发送
func (m *Manager) OnBreakpointAdded(pos Position, bp *Breakpoint) {
	bp.Position = pos
	wire := ToDebugBreakpoint(bp)
	if wire == nil {
		return
	}
	m.mutex.Lock()
	id := m.register(bp, wire)
	m.mutex.Unlock()
	logrus.Infof("[Manager] added breakpoint %s:%d (ID: %d)", wire.File, wire.Line, id)
	m.send(&protocol.AddBreakpointRequest{BreakPoints: []*protocol.DebugBreakpoint{wire}})
}

// OnBreakpointRemoved 没有登记过的断点不发送任何消息
func (m *Manager) OnBreakpointRemoved(pos Position, bp *Breakpoint) {
	m.mutex.Lock()
	id, ok := m.idByBreakpoint[bp]
	if !ok {
		m.mutex.Unlock()
		return
	}
	delete(m.idByBreakpoint, bp)
	value, found := m.byID.Get(id)
	m.byID.Remove(id)
	m.mutex.Unlock()
	if !found {
		return
	}
	wire := value.(*entry).wire
	logrus.Infof("[Manager] removed breakpoint %s:%d (ID: %d)", wire.File, wire.Line, id)
	m.send(&protocol.RemoveBreakpointRequest{BreakPoints: []*protocol.DebugBreakpoint{wire}})
}

// GetBreakpoint 通过位置反查断点，同一位置有多个时最后登记的优先
func (m *Manager) GetBreakpoint(pos Position) *Breakpoint {
	m.mutex.Lock()
	it := m.byID.Iterator()
	for it.End(); it.Prev(); {
		bp := it.Value().(*entry).breakpoint
		if bp.Position.Same(pos) {
			m.mutex.Unlock()
			return bp
		}
	}
	m.mutex.Unlock()

	if m.registry == nil {
		return nil
	}
	breakpoints := m.registry.Breakpoints()
	for i := len(breakpoints) - 1; i >= 0; i-- {
		if breakpoints[i].Position.Same(pos) {
			return breakpoints[i]
		}
	}
	return nil
}

// Len 当前登记的断点数量
func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.byID.Size()
}

// Clear 会话结束时调用，不发送删除请求
func (m *Manager) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.byID.Clear()
	m.idByBreakpoint = make(map[*Breakpoint]int)
	m.idCounter = 0
}

func (m *Manager) register(bp *Breakpoint, wire *protocol.DebugBreakpoint) int {
	// 同一个断点重复登记时替换旧id
	if old, ok := m.idByBreakpoint[bp]; ok {
		m.byID.Remove(old)
	}
	id := m.idCounter
	m.idCounter++
	m.byID.Put(id, &entry{breakpoint: bp, wire: wire})
	m.idByBreakpoint[bp] = id
	return id
}

// ToDebugBreakpoint 转换成协议断点，行号转为从1开始。
// 日志断点不带条件，空字符串不发送
func ToDebugBreakpoint(bp *Breakpoint) *protocol.DebugBreakpoint {
	if bp == nil || bp.File == "" {
		return nil
	}
	wire := &protocol.DebugBreakpoint{
		File:         absPath(bp.File),
		Line:         bp.Line + 1,
		HitCondition: optional(bp.HitCondition),
	}
	if bp.LogMessage != "" {
		wire.LogMessage = optional(bp.LogMessage)
	} else {
		wire.Condition = optional(bp.Condition)
	}
	return wire
}

// FromDebugBreakpoint 协议断点转换回用户断点，行号转为从0开始
func FromDebugBreakpoint(wire *protocol.DebugBreakpoint) *Breakpoint {
	bp := &Breakpoint{
		Position: Position{File: wire.File, Line: wire.Line - 1},
	}
	if wire.Condition != nil {
		bp.Condition = *wire.Condition
	}
	if wire.LogMessage != nil {
		bp.LogMessage = *wire.LogMessage
	}
	if wire.HitCondition != nil {
		bp.HitCondition = *wire.HitCondition
	}
	return bp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
