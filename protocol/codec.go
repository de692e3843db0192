package protocol

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	e "github.com/fansqz/lua-debugger/error"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Encode 编码成两行：命令号 + json，各自以\n结尾
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	cmd := int(msg.Command())
	// 被调试进程也会读取json中的cmd字段
	body, err = sjson.SetBytes(body, "cmd", cmd)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(body)+8)
	buf = strconv.AppendInt(buf, int64(cmd), 10)
	buf = append(buf, '\n')
	buf = append(buf, body...)
	buf = append(buf, '\n')
	return buf, nil
}

// Decode 解析json，结构不匹配时返回ErrMalformedPayload，调用方记录日志并丢弃该消息
func Decode(payload string, v interface{}) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", e.ErrMalformedPayload, err)
	}
	return nil
}

// PeekSeq 不完整解析，只取出响应的seq
func PeekSeq(payload string) (int, bool) {
	seq := gjson.Get(payload, "seq")
	if seq.Type != gjson.Number {
		return 0, false
	}
	return int(seq.Int()), true
}

// ReadMessage 读取一条消息。
// 命令行不是整数时只消费这一行并返回ErrMalformedPayload，连接可以继续使用；
// 其他错误都是io错误
func ReadMessage(r *bufio.Reader) (Command, string, error) {
	cmdLine, err := r.ReadString('\n')
	if err != nil {
		return Unknown, "", err
	}
	cmdValue, convErr := strconv.Atoi(strings.TrimSpace(cmdLine))
	if convErr != nil {
		return Unknown, "", fmt.Errorf("%w: bad command line %q", e.ErrMalformedPayload, cmdLine)
	}
	payload, err := r.ReadString('\n')
	if err != nil {
		return Unknown, "", err
	}
	return ParseCommand(cmdValue), strings.TrimRight(payload, "\r\n"), nil
}
