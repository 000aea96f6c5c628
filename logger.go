package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// --- Log Levels ---

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// --- Logger ---

// Logger is a leveled structured logger with text or JSON line output and
// optional file duplication.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	json  bool
	out   io.Writer
	file  *os.File
}

var defaultLogger *Logger

// initLogger builds the global logger from config.
func initLogger(cfg LoggingConfig) *Logger {
	l := &Logger{
		level: parseLevel(cfg.levelOrDefault()),
		json:  strings.EqualFold(cfg.formatOrDefault(), "json"),
		out:   os.Stderr,
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot create log dir: %v\n", err)
			return l
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open log file %s: %v\n", cfg.File, err)
			return l
		}
		l.file = f
		l.out = io.MultiWriter(os.Stderr, f)
	}
	return l
}

func (l *Logger) log(level LogLevel, msg string, fields ...any) {
	if level < l.level {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)

	var line string
	if l.json {
		entry := map[string]any{"ts": ts, "level": level.String(), "msg": msg}
		for i := 0; i+1 < len(fields); i += 2 {
			entry[fmt.Sprintf("%v", fields[i])] = fields[i+1]
		}
		b, err := json.Marshal(entry)
		if err != nil {
			b = []byte(fmt.Sprintf(`{"ts":%q,"level":%q,"msg":%q}`, ts, level.String(), msg))
		}
		line = string(b) + "\n"
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %-5s %s", ts, level.String(), msg)
		for i := 0; i+1 < len(fields); i += 2 {
			fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
		}
		sb.WriteByte('\n')
		line = sb.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, line)
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) Debug(msg string, fields ...any) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.log(LevelError, msg, fields...) }

// --- Package-level shortcuts ---

func logDebug(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, fields...)
	}
}
func logInfo(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, fields...)
	}
}
func logWarn(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, fields...)
	}
}
func logError(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, fields...)
	}
}
