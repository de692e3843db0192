package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/fansqz/lua-debugger/constants"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/protocol"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultDrainTimeout = 3 * time.Second
	acceptRetryDelay    = 100 * time.Millisecond
)

// Handler 传输层事件回调。
// 回调在传输层自己的协程中执行，需要切换线程的由调用方自行处理
type Handler interface {
	// OnConnect 连接成功或失败
	OnConnect(success bool)
	// OnDisconnect 当前连接断开，每个连接最多一次
	OnDisconnect()
	// OnMessage 收到一条消息，payload为原始json
	OnMessage(cmd protocol.Command, payload string)
	OnError(message string, err error)
	OnLog(message string)
}

// Transport 与被调试进程之间的双工通道
type Transport interface {
	// Connect 建立连接，client模式主动连接，server模式开始监听
	Connect(ctx context.Context) error
	// Stop 幂等，先发送完已入队的消息再关闭连接
	Stop()
	// Send 消息入队，不阻塞
	Send(msg protocol.Message)
	IsConnected() bool
	SetHandler(handler Handler)
}

// Option 传输层参数
type Option struct {
	// DialTimeout client模式连接超时
	DialTimeout time.Duration
	// DrainTimeout Stop时等待发送队列清空的最长时间
	DrainTimeout time.Duration
}

func (o *Option) withDefaults() Option {
	answer := Option{DialTimeout: DefaultDialTimeout, DrainTimeout: DefaultDrainTimeout}
	if o == nil {
		return answer
	}
	if o.DialTimeout > 0 {
		answer.DialTimeout = o.DialTimeout
	}
	if o.DrainTimeout > 0 {
		answer.DrainTimeout = o.DrainTimeout
	}
	return answer
}

// New 根据连接方式创建传输层
func New(mode constants.TransportMode, host string, port int, option *Option) (Transport, error) {
	switch mode {
	case constants.ModeClient:
		return NewClientTransport(host, port, option), nil
	case constants.ModeServer:
		return NewServerTransport(host, port, option), nil
	}
	return nil, fmt.Errorf("%w: %s", e.ErrModeNotSupported, mode)
}
