package breakpoint

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Position 源码位置，Line从0开始
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line+1)
}

// Same 同一个文件的同一行，相对路径按当前工作目录转换后比较
func (p Position) Same(other Position) bool {
	return p.Line == other.Line && absPath(p.File) == absPath(other.File)
}

func absPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}

// Breakpoint 用户设置的断点
type Breakpoint struct {
	Position
	Condition string
	// LogMessage 不为空时是日志断点
	LogMessage   string
	HitCondition string
}

// Registry 用户当前设置的所有断点
type Registry interface {
	Breakpoints() []*Breakpoint
}

// MemoryRegistry 内存中的断点列表，按添加顺序保存
type MemoryRegistry struct {
	mutex sync.RWMutex
	items []*Breakpoint
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) Add(bp *Breakpoint) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.items = append(r.items, bp)
}

// Remove 删除同一位置最后添加的断点
func (r *MemoryRegistry) Remove(pos Position) (*Breakpoint, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Position.Same(pos) {
			bp := r.items[i]
			r.items = append(r.items[:i], r.items[i+1:]...)
			return bp, true
		}
	}
	return nil, false
}

// Find 同一位置有多个断点时返回最后添加的
func (r *MemoryRegistry) Find(pos Position) *Breakpoint {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Position.Same(pos) {
			return r.items[i]
		}
	}
	return nil
}

func (r *MemoryRegistry) Breakpoints() []*Breakpoint {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	answer := make([]*Breakpoint, len(r.items))
	copy(answer, r.items)
	return answer
}
