package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/dapview"
	"github.com/fansqz/lua-debugger/debugger"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	"github.com/fansqz/lua-debugger/launcher"
	"github.com/sirupsen/logrus"
)

// 定义版本号
const Version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Show the version number")
	configFile := flag.String("config", "", "YAML config file")
	mode := flag.String("mode", "", "client: connect to debuggee, server: wait for debuggee")
	host := flag.String("host", "", "Debuggee host")
	port := flag.Int("port", 0, "Debuggee port")
	helper := flag.String("helper", "", "Helper lua file sent to debuggee")
	sourceRoots := flag.String("roots", "", "Comma separated source roots")
	breakpoints := flag.String("b", "", "Comma separated breakpoints, file:line")
	logPath := flag.String("log", "", "Log file")
	logLevel := flag.String("logLevel", "", "Log level")
	flag.Parse()

	// 检查是否需要显示版本信息
	if *showVersion {
		fmt.Printf("Version: %s\n", Version)
		return
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config fail, err = %v\n", err)
		os.Exit(1)
	}
	// 只覆盖命令行中显式设置的参数
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			config.Mode = constants.TransportMode(*mode)
		case "host":
			config.Host = *host
		case "port":
			config.Port = *port
		case "helper":
			config.Helper = *helper
		case "roots":
			config.SourceRoots = splitList(*sourceRoots)
		case "b":
			config.Breakpoints = splitList(*breakpoints)
		case "log":
			config.LogFile = *logPath
		case "logLevel":
			config.LogLevel = *logLevel
		}
	})
	if flag.NArg() > 0 {
		config.Launch = flag.Args()
	}
	if err = config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	//启动日志
	SetupLogger(config.LogFile, config.LogLevel)
	defer CloseLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err = run(ctx, config, os.Stdin, os.Stdout); err != nil {
		logrus.Errorf("debug fail, err = %v", err)
		fmt.Fprintln(os.Stderr, err)
		CloseLogger()
		os.Exit(1)
	}
}

// run 启动被调试进程（如果配置了）和调试会话，然后处理用户命令直到退出
func run(ctx context.Context, config *Config, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := newMessageWriter(out)
	view := dapview.NewView()
	callback := func(event interface{}) {
		if message := view.Event(event); message != nil {
			writer.send(message)
		}
		if _, ok := event.(*debugger.TerminatedEvent); ok {
			cancel()
		}
	}

	var l *launcher.Launcher
	if len(config.Launch) > 0 {
		l = launcher.New(config.Launch[0], config.Launch[1:], &launcher.Option{
			Dir:      config.LaunchDir,
			Callback: callback,
		})
		if err := l.Start(ctx); err != nil {
			return err
		}
		defer l.Stop()
	}

	registry := breakpoint.NewMemoryRegistry()
	for _, bp := range config.StartBreakpoints() {
		registry.Add(bp)
	}
	session := debugger.NewDebugSession()
	defer session.Stop()
	err := session.Start(ctx, &debugger.StartOption{
		Mode:         config.Mode,
		Host:         config.Host,
		Port:         config.Port,
		HelperFile:   config.Helper,
		Extensions:   config.Extensions,
		SourceRoots:  config.SourceRoots,
		Registry:     registry,
		Locator:      debugger.NewFileSystemLocator(config.Extensions),
		Callback:     callback,
		DialTimeout:  config.DialTimeout,
		DrainTimeout: config.DrainTimeout,
	})
	if err != nil {
		return err
	}

	handler := NewConsoleHandler(session, registry, view, writer, l)
	return serveConsole(ctx, in, handler)
}

func splitList(s string) []string {
	var answer []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			answer = append(answer, item)
		}
	}
	return answer
}
