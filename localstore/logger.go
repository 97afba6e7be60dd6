package localstore

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger forwards badger's printf-style logging to slog. Badger is
// chatty at info level, so info output is demoted to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(message(format, args), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(message(format, args), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(message(format, args), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(message(format, args), "component", "badger")
}

func message(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
