package qspi

import (
	"context"
	"log/slog"
)

// levelTrace logs every command frame.
const levelTrace slog.Level = slog.LevelDebug - 1

func (f *Flash) logerr(msg string, attrs ...slog.Attr) {
	f.logattrs(slog.LevelError, msg, attrs...)
}

func (f *Flash) info(msg string, attrs ...slog.Attr) {
	f.logattrs(slog.LevelInfo, msg, attrs...)
}

func (f *Flash) debug(msg string, attrs ...slog.Attr) {
	f.logattrs(slog.LevelDebug, msg, attrs...)
}

func (f *Flash) trace(msg string, attrs ...slog.Attr) {
	if f.traceEnabled {
		f.logattrs(levelTrace, msg, attrs...)
	}
}

func (f *Flash) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if f.logger == nil {
		return
	}
	f.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
