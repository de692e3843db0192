package main

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/fansqz/lua-debugger/utils/gosync"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// messageWriter 事件回调和命令处理都会写出消息，需要串行写
type messageWriter struct {
	mutex sync.Mutex
	w     *bufio.Writer
}

func newMessageWriter(w io.Writer) *messageWriter {
	return &messageWriter{w: bufio.NewWriter(w)}
}

// send Message输出给用户
func (m *messageWriter) send(message dap.Message) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := dap.WriteProtocolMessage(m.w, message); err != nil {
		logrus.Warnf("[Console] write message fail, err = %v", err)
		return
	}
	if err := m.w.Flush(); err != nil {
		logrus.Warnf("[Console] flush fail, err = %v", err)
	}
}

// serveConsole
// 逐行读取用户命令并分发给handler，输入结束、用户退出或ctx结束时返回。
// 返回时关闭可关闭的输入，读取协程随之退出；不可关闭的输入上读取协程会阻塞到下一次读取返回
func serveConsole(ctx context.Context, r io.Reader, handler *ConsoleHandler) error {
	if closer, ok := r.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logrus.Warnf("[Console] close input fail, err = %v", err)
			}
		}()
	}
	lines := make(chan string)
	var readErr error
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr = scanner.Err()
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if readErr != nil {
					logrus.Warnf("[Console] read fail, err = %v", readErr)
				}
				return readErr
			}
			if quit := handler.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = message
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Format = message
	er.Body.Error.Id = 12345
	return er
}
