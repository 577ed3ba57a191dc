// Package logger is a leveled file logger with line-count rotation. The
// process's stdout and stderr carry msgpack-RPC traffic once Neovim attaches,
// so everything diagnostic goes to a log file next to the executable.
package logger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLines is the rotation threshold for the log file. When crossed, the
// file is trimmed in place to the newest half so rotation stays infrequent.
const MaxLines = 5000

// Level represents the logging level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the tag written into log lines.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a config string into a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// FileLogger writes timestamped, leveled lines to a single file and trims
// the file in place when it grows past MaxLines.
type FileLogger struct {
	mu    sync.Mutex
	f     *os.File
	level Level
	lines int
}

// global is nil until Open succeeds; package-level helpers fall back to
// stderr so early startup failures are still visible somewhere.
var global *FileLogger

var fallback = &FileLogger{f: os.Stderr, level: LevelInfo}

// Open opens (or creates) the log file at path, counts its existing lines
// so rotation accounting survives restarts, and installs the logger as the
// package-level default.
func Open(path string, level Level) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := &FileLogger{f: f, level: level}
	l.lines = countLines(f)
	global = l
	return l, nil
}

// SetLevel changes the minimum level that gets written.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *FileLogger) enabled(level Level) bool {
	return level >= l.level
}

func (l *FileLogger) log(level Level, format string, v ...any) {
	if !l.enabled(level) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	l.Write([]byte(line))
}

// Write implements io.Writer so the stdlib log package (used by the nvim
// client for its own messages) can be pointed at the same file.
func (l *FileLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.f.Write(p)
	if err != nil {
		return n, err
	}
	l.lines += strings.Count(string(p[:n]), "\n")
	if l.lines > MaxLines {
		l.rotate()
	}
	return n, nil
}

// rotate trims the file in place, keeping the newest MaxLines/2 lines.
// Called with mu held.
func (l *FileLogger) rotate() {
	if _, err := l.f.Seek(0, 0); err != nil {
		return
	}
	var lines []string
	sc := bufio.NewScanner(l.f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	keep := MaxLines / 2
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	if err := l.f.Truncate(0); err != nil {
		return
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		return
	}
	for _, line := range lines {
		l.f.WriteString(line + "\n")
	}
	l.lines = len(lines)
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	return l.f.Close()
}

func countLines(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	defer f.Seek(0, 2)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
	}
	return n
}

func active() *FileLogger {
	if global != nil {
		return global
	}
	return fallback
}

// SetGlobalLevel changes the level on whichever logger is active.
func SetGlobalLevel(level Level) {
	active().SetLevel(level)
}

func Debug(format string, v ...any) { active().log(LevelDebug, format, v...) }
func Info(format string, v ...any)  { active().log(LevelInfo, format, v...) }
func Warn(format string, v ...any)  { active().log(LevelWarn, format, v...) }
func Error(format string, v ...any) { active().log(LevelError, format, v...) }

// Fatal logs at error level and exits.
func Fatal(format string, v ...any) {
	active().log(LevelError, format, v...)
	os.Exit(1)
}

var noop = func() {}

// Trace returns a function that logs the elapsed time since the call when
// invoked. Usage: defer logger.Trace("report.render")()
func Trace(name string) func() {
	l := active()
	if !l.enabled(LevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		l.log(LevelTrace, "%s took %v", name, time.Since(start))
	}
}

// Scope prefixes every message with a subsystem name.
type Scope struct {
	prefix string
}

// Scoped returns a Scope writing through the active logger.
func Scoped(prefix string) *Scope {
	return &Scope{prefix: prefix}
}

func (s *Scope) Debug(format string, v ...any) { active().log(LevelDebug, s.prefix+": "+format, v...) }
func (s *Scope) Info(format string, v ...any)  { active().log(LevelInfo, s.prefix+": "+format, v...) }
func (s *Scope) Warn(format string, v ...any)  { active().log(LevelWarn, s.prefix+": "+format, v...) }
func (s *Scope) Error(format string, v ...any) { active().log(LevelError, s.prefix+": "+format, v...) }
