package logger

import "github.com/robfig/cron/v3"

// CronLogger adapts l to the logger interface robfig/cron expects.
func CronLogger(l *Logger) cron.Logger {
	return cronAdapter{l: l}
}

type cronAdapter struct {
	l *Logger
}

func (a cronAdapter) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		a.l.slog.Info("cron: firing skipped, previous run still active", keysAndValues...)
		return
	}
	// cron reports every wake and run at info; keep that noise at debug.
	a.l.slog.Debug("cron: "+msg, keysAndValues...)
}

func (a cronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{"error", err}, keysAndValues...)
	a.l.slog.Error("cron: "+msg, args...)
}
