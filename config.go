package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fansqz/lua-debugger/constants"
	"github.com/fansqz/lua-debugger/debugger"
	"github.com/fansqz/lua-debugger/debugger/breakpoint"
	e "github.com/fansqz/lua-debugger/error"
	"gopkg.in/yaml.v3"
)

// Config 调试器配置，配置文件中的值会被命令行参数覆盖
type Config struct {
	Mode        constants.TransportMode `yaml:"mode"`
	Host        string                  `yaml:"host"`
	Port        int                     `yaml:"port"`
	Helper      string                  `yaml:"helper"`
	Extensions  []string                `yaml:"extensions"`
	SourceRoots []string                `yaml:"sourceRoots"`
	// Breakpoints 启动时设置的断点，格式file:line，行号从1开始
	Breakpoints []string `yaml:"breakpoints"`
	// Launch 被调试进程的启动命令，为空时不启动
	Launch    []string `yaml:"launch"`
	LaunchDir string   `yaml:"launchDir"`

	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`

	DialTimeout  time.Duration `yaml:"dialTimeout"`
	DrainTimeout time.Duration `yaml:"drainTimeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:         constants.ModeClient,
		Host:         "localhost",
		Port:         9966,
		Extensions:   debugger.DefaultExtensions,
		LogFile:      "/var/luadebugger.log",
		LogLevel:     "info",
		DialTimeout:  5 * time.Second,
		DrainTimeout: 3 * time.Second,
	}
}

// LoadConfig 读取yaml配置，未配置的字段使用默认值
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidConfig, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Mode != constants.ModeClient && c.Mode != constants.ModeServer {
		return fmt.Errorf("%w: mode %q", e.ErrInvalidConfig, c.Mode)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", e.ErrInvalidConfig, c.Port)
	}
	if c.Mode == constants.ModeClient && c.Port == 0 {
		return fmt.Errorf("%w: client mode needs a port", e.ErrInvalidConfig)
	}
	for _, bp := range c.Breakpoints {
		if _, err := ParsePosition(bp); err != nil {
			return err
		}
	}
	return nil
}

// StartBreakpoints 配置中的断点
func (c *Config) StartBreakpoints() []*breakpoint.Breakpoint {
	answer := make([]*breakpoint.Breakpoint, 0, len(c.Breakpoints))
	for _, bp := range c.Breakpoints {
		pos, err := ParsePosition(bp)
		if err != nil {
			continue
		}
		answer = append(answer, &breakpoint.Breakpoint{Position: pos})
	}
	return answer
}

// ParsePosition 解析file:line，输入的行号从1开始，返回的位置行号从0开始
func ParsePosition(s string) (breakpoint.Position, error) {
	index := strings.LastIndex(s, ":")
	if index <= 0 || index == len(s)-1 {
		return breakpoint.Position{}, fmt.Errorf("%w: position %q, expect file:line", e.ErrInvalidConfig, s)
	}
	line, err := strconv.Atoi(s[index+1:])
	if err != nil || line < 1 {
		return breakpoint.Position{}, fmt.Errorf("%w: position %q, bad line", e.ErrInvalidConfig, s)
	}
	return breakpoint.Position{File: s[:index], Line: line - 1}, nil
}
