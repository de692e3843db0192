package transport

import (
	"context"
	"fmt"
	"net"

	e "github.com/fansqz/lua-debugger/error"
)

// ClientTransport 主动连接被调试进程，失败只通知一次，不自动重试
type ClientTransport struct {
	*socketTransport
}

func NewClientTransport(host string, port int, option *Option) *ClientTransport {
	return &ClientTransport{socketTransport: newSocketTransport(host, port, option)}
}

func (t *ClientTransport) Connect(ctx context.Context) error {
	if t.stopped.Load() {
		return e.ErrTransportStopped
	}
	t.notifyLog(fmt.Sprintf("Connecting to %s...", t.address()))
	dialer := &net.Dialer{Timeout: t.option.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.address())
	if err != nil {
		t.notifyError(fmt.Sprintf("Connection failed: %v", err), err)
		t.notifyConnected(false)
		return err
	}
	c := newConnection(conn)
	t.swap(c)
	t.startIO(c)
	return nil
}
