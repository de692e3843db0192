package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/protocol"
	"github.com/fansqz/lua-debugger/utils"
	"github.com/fansqz/lua-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
)

// stopSign 发送队列中的哨兵，发送协程取到后退出
type stopSign struct{}

// connection 一个对端连接，拥有自己的发送队列和收发协程
type connection struct {
	id       string
	conn     net.Conn
	queue    *utils.BlockingQueue
	sendDone chan struct{}

	closed         atomic.Bool
	closeOnce      sync.Once
	disconnectOnce sync.Once
}

func newConnection(conn net.Conn) *connection {
	return &connection{
		id:       utils.ShortID(),
		conn:     conn,
		queue:    utils.NewBlockingQueue(),
		sendDone: make(chan struct{}),
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()
	})
}

// socketTransport client和server共用的部分：当前连接、收发循环、回调
type socketTransport struct {
	host   string
	port   int
	option Option

	handlerLock sync.RWMutex
	handler     Handler

	// mutex 保护current，替换连接必须在锁内一次完成
	mutex   sync.Mutex
	current *connection

	stopped atomic.Bool
}

func newSocketTransport(host string, port int, option *Option) *socketTransport {
	return &socketTransport{
		host:   host,
		port:   port,
		option: option.withDefaults(),
	}
}

func (t *socketTransport) address() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *socketTransport) SetHandler(handler Handler) {
	t.handlerLock.Lock()
	defer t.handlerLock.Unlock()
	t.handler = handler
}

func (t *socketTransport) getHandler() Handler {
	t.handlerLock.RLock()
	defer t.handlerLock.RUnlock()
	return t.handler
}

func (t *socketTransport) Send(msg protocol.Message) {
	if t.stopped.Load() {
		logrus.Warnf("[Transport] cannot send %s, transport is stopped", msg.Command())
		return
	}
	t.mutex.Lock()
	c := t.current
	t.mutex.Unlock()
	if c == nil {
		logrus.Warnf("[Transport] cannot send %s, not connected", msg.Command())
		return
	}
	c.queue.Put(msg)
}

func (t *socketTransport) IsConnected() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.current != nil && !t.current.closed.Load()
}

// Stop 幂等。先放入哨兵并等待发送协程把之前的消息写完，再关闭连接让读协程退出
func (t *socketTransport) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	t.mutex.Lock()
	c := t.current
	t.mutex.Unlock()
	if c != nil {
		t.drainAndClose(c)
	}
	t.notifyLog("Transport stopped")
}

func (t *socketTransport) drainAndClose(c *connection) {
	c.queue.Put(stopSign{})
	select {
	case <-c.sendDone:
	case <-time.After(t.option.DrainTimeout):
		logrus.Warnf("[Transport] connection %s drain timeout, %d messages dropped", c.id, c.queue.Len())
	}
	c.close()
}

// swap 替换当前连接，返回旧连接
func (t *socketTransport) swap(c *connection) *connection {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	old := t.current
	t.current = c
	return old
}

func (t *socketTransport) isCurrent(c *connection) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.current == c
}

// startIO 启动收发协程并通知连接成功。
// 发送协程先于回调启动，回调中发送的握手消息直接入队
func (t *socketTransport) startIO(c *connection) {
	gosync.Go(context.Background(), func(ctx context.Context) {
		t.sendLoop(c)
	})
	t.notifyConnected(true)
	gosync.Go(context.Background(), func(ctx context.Context) {
		t.receiveLoop(c)
	})
}

func (t *socketTransport) receiveLoop(c *connection) {
	logrus.Infof("[Transport] connection %s receive loop start", c.id)
	reader := bufio.NewReader(c.conn)
	for {
		cmd, payload, err := protocol.ReadMessage(reader)
		if err != nil {
			if errors.Is(err, e.ErrMalformedPayload) {
				logrus.Warnf("[Transport] drop message, err = %v", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !c.closed.Load() && !t.stopped.Load() {
				t.notifyError("IO error while receiving", err)
			}
			break
		}
		// 已经被替换掉的连接，消息不再分发
		if !t.isCurrent(c) {
			break
		}
		t.notifyMessage(cmd, payload)
	}
	c.queue.Put(stopSign{})
	t.connectionLost(c)
	logrus.Infof("[Transport] connection %s receive loop stop", c.id)
}

func (t *socketTransport) sendLoop(c *connection) {
	defer close(c.sendDone)
	for {
		item := c.queue.Take()
		if _, ok := item.(stopSign); ok {
			break
		}
		msg := item.(protocol.Message)
		data, err := protocol.Encode(msg)
		if err != nil {
			logrus.Errorf("[Transport] encode %s fail, err = %v", msg.Command(), err)
			continue
		}
		if _, err = c.conn.Write(data); err != nil {
			if !c.closed.Load() {
				t.notifyError("IO error while sending", err)
			}
			break
		}
	}
	logrus.Infof("[Transport] connection %s send loop stop", c.id)
}

// connectionLost 只有仍是当前连接时才通知断开，被替换的连接静默关闭
func (t *socketTransport) connectionLost(c *connection) {
	t.mutex.Lock()
	wasCurrent := t.current == c
	if wasCurrent {
		t.current = nil
	}
	t.mutex.Unlock()
	c.close()
	if wasCurrent {
		c.disconnectOnce.Do(t.notifyDisconnected)
	}
}

func (t *socketTransport) notifyConnected(success bool) {
	if success {
		t.notifyLog(fmt.Sprintf("Connected to %s", t.address()))
	} else {
		t.notifyLog(fmt.Sprintf("Failed to connect to %s", t.address()))
	}
	if h := t.getHandler(); h != nil {
		gosync.Safe(func() { h.OnConnect(success) })
	}
}

func (t *socketTransport) notifyDisconnected() {
	t.notifyLog(fmt.Sprintf("Disconnected from %s", t.address()))
	if h := t.getHandler(); h != nil {
		gosync.Safe(func() { h.OnDisconnect() })
	}
}

func (t *socketTransport) notifyMessage(cmd protocol.Command, payload string) {
	h := t.getHandler()
	if h == nil {
		return
	}
	if !gosync.Safe(func() { h.OnMessage(cmd, payload) }) {
		t.notifyError(fmt.Sprintf("Error handling message %s", cmd), nil)
	}
}

func (t *socketTransport) notifyError(message string, err error) {
	logrus.Errorf("[Transport] %s, err = %v", message, err)
	if h := t.getHandler(); h != nil {
		gosync.Safe(func() { h.OnError(message, err) })
	}
}

func (t *socketTransport) notifyLog(message string) {
	logrus.Infof("[Transport] %s", message)
	if h := t.getHandler(); h != nil {
		gosync.Safe(func() { h.OnLog(message) })
	}
}
