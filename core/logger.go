package core

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a SimpleLogger emits
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel converts a level name to a LogLevel. Unknown names map to
// InfoLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SimpleLogger is a production-ready Logger implementation that writes one
// JSON object per line. Persistent fields attached via With are merged into
// every entry.
type SimpleLogger struct {
	level  LogLevel
	fields map[string]interface{}
	mu     *sync.Mutex
	out    io.Writer
}

// NewSimpleLogger creates a logger writing to stderr at the given level
func NewSimpleLogger(level LogLevel) *SimpleLogger {
	return &SimpleLogger{
		level:  level,
		fields: make(map[string]interface{}),
		mu:     &sync.Mutex{},
		out:    os.Stderr,
	}
}

// NewSimpleLoggerWithOutput creates a logger writing to the given writer.
// Used by tests to capture output.
func NewSimpleLoggerWithOutput(level LogLevel, out io.Writer) *SimpleLogger {
	return &SimpleLogger{
		level:  level,
		fields: make(map[string]interface{}),
		mu:     &sync.Mutex{},
		out:    out,
	}
}

// With returns a logger whose entries always carry the given fields.
// The writer and level are shared with the parent.
func (l *SimpleLogger) With(fields map[string]interface{}) *SimpleLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &SimpleLogger{
		level:  l.level,
		fields: merged,
		mu:     l.mu,
		out:    l.out,
	}
}

func (l *SimpleLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(DebugLevel, "DEBUG", msg, fields)
}

func (l *SimpleLogger) Info(msg string, fields map[string]interface{}) {
	l.log(InfoLevel, "INFO", msg, fields)
}

func (l *SimpleLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(WarnLevel, "WARN", msg, fields)
}

func (l *SimpleLogger) Error(msg string, fields map[string]interface{}) {
	l.log(ErrorLevel, "ERROR", msg, fields)
}

func (l *SimpleLogger) log(level LogLevel, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := make(map[string]interface{}, len(l.fields)+len(fields)+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			entry[k] = err.Error()
			continue
		}
		entry[k] = v
	}
	entry["level"] = name
	entry["msg"] = msg
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		// A non-serializable field should not lose the message
		data, _ = json.Marshal(map[string]interface{}{
			"level": name,
			"msg":   msg,
			"time":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}
