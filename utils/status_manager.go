package utils

import (
	"sync"

	"github.com/fansqz/lua-debugger/constants"
)

// StatusManager 记录调试会话的状态
type StatusManager struct {
	lock   sync.RWMutex
	status constants.SessionStatus
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.Disconnected,
	}
}

func (s *StatusManager) Set(status constants.SessionStatus) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() constants.SessionStatus {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...constants.SessionStatus) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}

// Transition 当前状态属于from时切换到to，返回是否切换成功。
// Stopped是终态，任何切换都会失败
func (s *StatusManager) Transition(to constants.SessionStatus, from ...constants.SessionStatus) bool {
	defer s.lock.Unlock()
	s.lock.Lock()
	if s.status == constants.Stopped {
		return false
	}
	if len(from) == 0 {
		s.status = to
		return true
	}
	for _, status := range from {
		if s.status == status {
			s.status = to
			return true
		}
	}
	return false
}
