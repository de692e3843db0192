package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/utils/gosync"
)

// ServerTransport 监听端口等待被调试进程连接。
// 对端断开后继续accept，新的连接会替换旧连接，支持重新attach
type ServerTransport struct {
	*socketTransport

	listenerLock sync.Mutex
	listener     net.Listener
}

func NewServerTransport(host string, port int, option *Option) *ServerTransport {
	return &ServerTransport{socketTransport: newSocketTransport(host, port, option)}
}

func (s *ServerTransport) Connect(ctx context.Context) error {
	if s.stopped.Load() {
		return e.ErrTransportStopped
	}
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.address())
	if err != nil {
		s.notifyError(fmt.Sprintf("Server failed: %v", err), err)
		s.notifyConnected(false)
		return err
	}
	s.listenerLock.Lock()
	s.listener = listener
	s.listenerLock.Unlock()

	s.notifyLog(fmt.Sprintf("Server listening on %s, waiting for connection...", listener.Addr()))
	gosync.Go(context.Background(), func(ctx context.Context) {
		s.acceptLoop(listener)
	})
	return nil
}

// Addr 实际监听的地址，端口为0时用于获取系统分配的端口
func (s *ServerTransport) Addr() net.Addr {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ServerTransport) acceptLoop(listener net.Listener) {
	for !s.stopped.Load() {
		conn, err := listener.Accept()
		if err != nil {
			if s.stopped.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			s.notifyError("Error accepting connection", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		if s.stopped.Load() {
			_ = conn.Close()
			break
		}
		c := newConnection(conn)
		if old := s.swap(c); old != nil {
			s.notifyLog(fmt.Sprintf("New connection from %s replaces the previous one", conn.RemoteAddr()))
			old.queue.Put(stopSign{})
			old.close()
		}
		s.startIO(c)
	}
	s.notifyLog("Server stop accepting")
}

func (s *ServerTransport) Stop() {
	s.listenerLock.Lock()
	listener := s.listener
	s.listenerLock.Unlock()
	if listener != nil && !s.stopped.Load() {
		defer func() {
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.notifyError("Error closing server socket", err)
			}
		}()
	}
	s.socketTransport.Stop()
}
