package chat

import "github.com/yanun0323/logs"

// Logger receives diagnostics from background stream loops.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger forwards to the process-wide logs package.
type DefaultLogger struct{}

func (DefaultLogger) Infof(format string, args ...any) {
	logs.Infof(format, args...)
}

func (DefaultLogger) Errorf(format string, args ...any) {
	logs.Errorf(format, args...)
}
