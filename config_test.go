package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fansqz/lua-debugger/constants"
	e "github.com/fansqz/lua-debugger/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Default(t *testing.T) {
	config, err := LoadConfig("")
	require.Nil(t, err)
	assert.Equal(t, constants.ModeClient, config.Mode)
	assert.Equal(t, 9966, config.Port)
	assert.Equal(t, []string{".lua"}, config.Extensions)
	assert.Nil(t, config.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "debugger.yaml")
	content := `
mode: server
host: 0.0.0.0
port: 9967
helper: /opt/emmy/emmyHelper.lua
extensions: [".lua", ".lua.txt"]
sourceRoots:
  - /work/scripts
breakpoints:
  - main.lua:10
launch: ["lua", "main.lua"]
dialTimeout: 2s
`
	require.Nil(t, os.WriteFile(file, []byte(content), 0644))

	config, err := LoadConfig(file)
	require.Nil(t, err)
	assert.Equal(t, constants.ModeServer, config.Mode)
	assert.Equal(t, "0.0.0.0", config.Host)
	assert.Equal(t, 9967, config.Port)
	assert.Equal(t, "/opt/emmy/emmyHelper.lua", config.Helper)
	assert.Equal(t, []string{".lua", ".lua.txt"}, config.Extensions)
	assert.Equal(t, []string{"/work/scripts"}, config.SourceRoots)
	assert.Equal(t, []string{"lua", "main.lua"}, config.Launch)
	assert.Equal(t, 2*time.Second, config.DialTimeout)
	// 未配置的字段保持默认值
	assert.Equal(t, 3*time.Second, config.DrainTimeout)
	assert.Equal(t, "info", config.LogLevel)
	assert.Nil(t, config.Validate())

	bps := config.StartBreakpoints()
	require.Len(t, bps, 1)
	assert.Equal(t, "main.lua", bps[0].File)
	assert.Equal(t, 9, bps[0].Line)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.Nil(t, os.WriteFile(file, []byte("port: [1, 2]\n"), 0644))
	_, err = LoadConfig(file)
	assert.True(t, errors.Is(err, e.ErrInvalidConfig))
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	config.Mode = "udp"
	assert.True(t, errors.Is(config.Validate(), e.ErrInvalidConfig))

	config = DefaultConfig()
	config.Port = 0
	assert.NotNil(t, config.Validate())
	config.Mode = constants.ModeServer
	assert.Nil(t, config.Validate())

	config = DefaultConfig()
	config.Breakpoints = []string{"main.lua"}
	assert.NotNil(t, config.Validate())
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("scripts/main.lua:3")
	require.Nil(t, err)
	assert.Equal(t, "scripts/main.lua", pos.File)
	assert.Equal(t, 2, pos.Line)

	pos, err = ParsePosition(`C:\work\main.lua:12`)
	require.Nil(t, err)
	assert.Equal(t, `C:\work\main.lua`, pos.File)
	assert.Equal(t, 11, pos.Line)

	for _, s := range []string{"", "main.lua", "main.lua:", ":3", "main.lua:0", "main.lua:x"} {
		_, err = ParsePosition(s)
		assert.NotNil(t, err, s)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
