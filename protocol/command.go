package protocol

// Command 消息命令号，顺序即为线上的整数编码，不能调整
type Command int

const (
	Unknown Command = iota
	InitReq
	InitRsp
	ReadyReq
	ReadyRsp
	AddBreakPointReq
	AddBreakPointRsp
	RemoveBreakPointReq
	RemoveBreakPointRsp
	ActionReq
	ActionRsp
	EvalReq
	EvalRsp
	// BreakNotify 被调试进程停在了某个位置
	BreakNotify
	AttachedNotify
	LogNotify
	StartHookReq
	StartHookRsp

	commandCount
)

var commandNames = [...]string{
	"Unknown",
	"InitReq", "InitRsp",
	"ReadyReq", "ReadyRsp",
	"AddBreakPointReq", "AddBreakPointRsp",
	"RemoveBreakPointReq", "RemoveBreakPointRsp",
	"ActionReq", "ActionRsp",
	"EvalReq", "EvalRsp",
	"BreakNotify", "AttachedNotify", "LogNotify",
	"StartHookReq", "StartHookRsp",
}

func (c Command) String() string {
	if c < 0 || c >= commandCount {
		return "Unknown"
	}
	return commandNames[c]
}

// ParseCommand 未知的命令号映射为Unknown，不报错
func ParseCommand(value int) Command {
	if value < 0 || value >= int(commandCount) {
		return Unknown
	}
	return Command(value)
}

// Action 调试动作
type Action int

const (
	// Break 暂停
	Break Action = iota
	Continue
	StepOver
	StepIn
	StepOut
	Stop
)

func (a Action) String() string {
	switch a {
	case Break:
		return "Break"
	case Continue:
		return "Continue"
	case StepOver:
		return "StepOver"
	case StepIn:
		return "StepIn"
	case StepOut:
		return "StepOut"
	case Stop:
		return "Stop"
	}
	return "Unknown"
}

// ValueType lua运行时类型，GROUP是界面上用于分组的虚拟类型
type ValueType int

const (
	TNIL ValueType = iota
	TBOOLEAN
	TLIGHTUSERDATA
	TNUMBER
	TSTRING
	TTABLE
	TFUNCTION
	TUSERDATA
	TTHREAD

	GROUP
)

// IsFake 序号大于TTHREAD的都不是真实的lua类型
func (t ValueType) IsFake() bool {
	return t > TTHREAD
}

func (t ValueType) String() string {
	switch t {
	case TNIL:
		return "nil"
	case TBOOLEAN:
		return "boolean"
	case TLIGHTUSERDATA:
		return "lightuserdata"
	case TNUMBER:
		return "number"
	case TSTRING:
		return "string"
	case TTABLE:
		return "table"
	case TFUNCTION:
		return "function"
	case TUSERDATA:
		return "userdata"
	case TTHREAD:
		return "thread"
	case GROUP:
		return "group"
	}
	return "unknown"
}
