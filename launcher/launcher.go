// Package launcher 在虚拟终端中启动被调试的lua进程，转发它的输出
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/fansqz/lua-debugger/debugger"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/fansqz/lua-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type Option struct {
	Dir string
	Env []string
	// Callback 进程输出以OutputEvent通知
	Callback debugger.NotificationCallback
}

// Launcher 一个被调试进程
type Launcher struct {
	command string
	args    []string
	option  Option

	ptm *os.File
	cmd *exec.Cmd

	done     chan struct{}
	exitErr  error
	stopOnce sync.Once
}

func New(command string, args []string, option *Option) *Launcher {
	l := &Launcher{
		command: command,
		args:    args,
		done:    make(chan struct{}),
	}
	if option != nil {
		l.option = *option
	}
	return l
}

func (l *Launcher) Start(ctx context.Context) error {
	logrus.Infof("[Launcher] Start %s %v", l.command, l.args)
	// 启动一个虚拟终端
	ptm, pts, err := pty.Open()
	if err != nil {
		return fmt.Errorf("%w: pty open fail, %v", e.ErrLaunchFailed, err)
	}
	if _, err = term.MakeRaw(int(ptm.Fd())); err != nil {
		_ = ptm.Close()
		_ = pts.Close()
		return fmt.Errorf("%w: make raw fail, %v", e.ErrLaunchFailed, err)
	}

	cmd := exec.CommandContext(ctx, l.command, l.args...)
	cmd.Dir = l.option.Dir
	if len(l.option.Env) > 0 {
		cmd.Env = append(os.Environ(), l.option.Env...)
	}
	cmd.Stdin = pts
	cmd.Stdout = pts
	cmd.Stderr = pts
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	if err = cmd.Start(); err != nil {
		_ = ptm.Close()
		_ = pts.Close()
		return fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
	}
	// 子进程已经持有pts，父进程关闭后子进程退出时读端才能结束
	_ = pts.Close()
	l.ptm = ptm
	l.cmd = cmd

	gosync.Go(context.Background(), func(ctx context.Context) {
		l.processOutput()
	})
	gosync.Go(context.Background(), func(ctx context.Context) {
		l.exitErr = cmd.Wait()
		logrus.Infof("[Launcher] process exit, err = %v", l.exitErr)
		close(l.done)
	})
	return nil
}

func (l *Launcher) processOutput() {
	b := make([]byte, 1024)
	for {
		n, err := l.ptm.Read(b)
		if n > 0 && l.option.Callback != nil {
			l.option.Callback(debugger.NewOutputEvent(string(b[:n])))
		}
		if err != nil {
			return
		}
	}
}

// Send 写入进程的标准输入
func (l *Launcher) Send(input string) error {
	if l.ptm == nil {
		return errors.New("process not started")
	}
	_, err := l.ptm.Write([]byte(input))
	return err
}

// Wait 等待进程退出
func (l *Launcher) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 进程退出后关闭
func (l *Launcher) Done() <-chan struct{} {
	return l.done
}

func (l *Launcher) Stop() {
	l.stopOnce.Do(func() {
		if l.cmd != nil && l.cmd.Process != nil {
			select {
			case <-l.done:
			default:
				_ = l.cmd.Process.Kill()
			}
		}
		if l.ptm != nil {
			_ = l.ptm.Close()
		}
	})
}
