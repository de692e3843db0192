package protocol

// DebugBreakpoint 发送给被调试进程的断点，被调试进程按(file, line)匹配断点
type DebugBreakpoint struct {
	// File 绝对路径
	File string `json:"file"`
	// Line 从1开始
	Line      int     `json:"line"`
	Condition *string `json:"condition,omitempty"`
	// LogMessage 不为空时是日志断点，不会停止
	LogMessage   *string `json:"logMessage,omitempty"`
	HitCondition *string `json:"hitCondition,omitempty"`
	// RunToHere 一次性断点，由被调试进程负责删除
	RunToHere bool `json:"runToHere"`
}

// IsLogpoint 是否为日志断点
func (b *DebugBreakpoint) IsLogpoint() bool {
	return b.LogMessage != nil && *b.LogMessage != ""
}

// DebugStackFrame 栈帧，level为0的是最内层
type DebugStackFrame struct {
	File             string           `json:"file"`
	Line             int              `json:"line"`
	FunctionName     string           `json:"functionName"`
	Level            int              `json:"level"`
	LocalVariables   []*DebugVariable `json:"localVariables"`
	UpvalueVariables []*DebugVariable `json:"upvalueVariables"`
}

// DebugVariable 变量
type DebugVariable struct {
	Name string `json:"name"`
	// NameType 变量名（table的key）的类型
	NameType      int    `json:"nameType"`
	Value         string `json:"value"`
	ValueType     int    `json:"valueType"`
	ValueTypeName string `json:"valueTypeName"`
	// CacheID 被调试进程缓存的table句柄，用于展开子节点
	CacheID  int              `json:"cacheId"`
	Children []*DebugVariable `json:"children"`
}

// NameTypeValue 超出范围的当作字符串
func (v *DebugVariable) NameTypeValue() ValueType {
	t := ValueType(v.NameType)
	if t < TNIL || t > GROUP {
		return TSTRING
	}
	return t
}

// ValueTypeValue 超出范围的原样返回，由IsFake判断
func (v *DebugVariable) ValueTypeValue() ValueType {
	return ValueType(v.ValueType)
}

// DisplayName key不是字符串时显示为[name]
func (v *DebugVariable) DisplayName() string {
	if v.NameTypeValue() == TSTRING {
		return v.Name
	}
	return "[" + v.Name + "]"
}

func (v *DebugVariable) IsFake() bool {
	return v.ValueTypeValue().IsFake()
}

func (v *DebugVariable) HasChildren() bool {
	return len(v.Children) > 0
}
