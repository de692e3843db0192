package error

import "errors"

var (
	ErrDebuggerIsClosed    = errors.New("debug is closed")
	ErrDisconnected        = errors.New("debuggee disconnected")
	ErrNotConnected        = errors.New("transport is not connected")
	ErrTransportStopped    = errors.New("transport is stopped")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrEvalFailed          = errors.New("evaluation failed")
	ErrSessionStarted      = errors.New("debug session already started")
	ErrModeNotSupported    = errors.New("This transport mode is not supported")
	ErrFileNotFound        = errors.New("source file not found")
	ErrLaunchFailed        = errors.New("launch debuggee fail")
	ErrNilValue            = errors.New("nil")
	ErrCommandNotSupported = errors.New("command not support")
	ErrInvalidConfig       = errors.New("invalid config")
)
