// Package rqlog centralizes the zap logger construction shared by build
// and search paths, defaulting to a no-op logger so callers never need a
// nil check.
package rqlog

import "go.uber.org/zap"

// NilSafe returns l, or a no-op logger if l is nil.
func NilSafe(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// New builds a development-mode console logger, used by the CLI when no
// logger is wired in explicitly.
func New() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
