// Package logging is a thin leveled wrapper around the standard library
// logger.
//
// Everything goes to the standard logger so that third-party code calling
// log.Printf ends up in the same place. Output defaults to stderr because
// stdout carries the MCP protocol. Setup can redirect it to a rotating file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders log messages by severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel maps "debug", "info", "warn" (or "warning") and "error" to a
// Level. Matching ignores case. The empty string is LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// SetLevel drops every message below l.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// GetLevel returns the active level.
func GetLevel() Level {
	return Level(current.Load())
}

// Options configures Setup.
type Options struct {
	Level string

	// File enables rotating file output. Empty means stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logger: date, time and caller file on every
// line, output to stderr or to a lumberjack rotated file.
//
// The returned Closer releases the log file; callers defer it.
func Setup(opts Options) (io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	SetLevel(lvl)

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetPrefix("")

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(lj)
	return lj, nil
}

func logf(l Level, format string, v ...any) {
	if l < GetLevel() {
		return
	}
	// 3: logf, the exported wrapper, its caller
	log.Output(3, "["+strings.ToUpper(l.String())+"] "+fmt.Sprintf(format, v...))
}

// Debugf logs at LevelDebug.
func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }

// Infof logs at LevelInfo.
func Infof(format string, v ...any) { logf(LevelInfo, format, v...) }

// Warnf logs at LevelWarn.
func Warnf(format string, v ...any) { logf(LevelWarn, format, v...) }

// Errorf logs at LevelError.
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	log.Output(2, "[FATAL] "+fmt.Sprintf(format, v...))
	os.Exit(1)
}
