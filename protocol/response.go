package protocol

// BreakNotification 被调试进程暂停时发送的调用栈
type BreakNotification struct {
	Stacks []*DebugStackFrame `json:"stacks"`
}

type AttachedNotification struct {
	State int64 `json:"state"`
}

// LogNotification type: 0 info, 1 warning, 2 error
type LogNotification struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type EvalResponse struct {
	Seq     int            `json:"seq"`
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Value   *DebugVariable `json:"value"`
}
