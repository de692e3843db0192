package dapview

import (
	"sync"

	"github.com/fansqz/lua-debugger/debugger/model"
)

const firstReference = 1000

// Handles 变量引用表，variablesReference -> 可展开的值。
// 每次暂停后重置，旧引用失效
type Handles struct {
	nextRef int
	mutex   sync.RWMutex
	ref2Val map[int]model.Composite
	val2Ref map[model.Composite]int
}

func NewHandles() *Handles {
	return &Handles{
		nextRef: firstReference,
		ref2Val: map[int]model.Composite{},
		val2Ref: map[model.Composite]int{},
	}
}

// Create 同一个值重复创建时返回同一个引用
func (h *Handles) Create(value model.Composite) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if ref, ok := h.val2Ref[value]; ok {
		return ref
	}
	ref := h.nextRef
	h.nextRef++
	h.ref2Val[ref] = value
	h.val2Ref[value] = ref
	return ref
}

func (h *Handles) Get(ref int) (model.Composite, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	value, ok := h.ref2Val[ref]
	return value, ok
}

func (h *Handles) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.nextRef = firstReference
	h.ref2Val = map[int]model.Composite{}
	h.val2Ref = map[model.Composite]int{}
}
