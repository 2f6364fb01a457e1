package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var (
	mu           sync.Mutex
	currentLevel = INFO
	stdLogger    = log.New(os.Stderr, "", 0)
	fileLogger   *fileSink
)

type fileSink struct {
	file *os.File
	enc  *json.Encoder
}

// logEntry is the JSON shape written to the optional log file.
type logEntry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

func GetLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel
}

// ParseLevel maps "debug", "info", "warn" and "error" to a level; anything else is INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetOutput redirects console output. The REPL points this at readline's
// stderr so log lines don't corrupt the prompt.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	stdLogger = log.New(w, "", 0)
}

// EnableFileLogging additionally appends every entry as a JSON line to path.
func EnableFileLogging(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fileLogger != nil {
		fileLogger.file.Close()
	}
	fileLogger = &fileSink{file: f, enc: json.NewEncoder(f)}
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger != nil {
		fileLogger.file.Close()
		fileLogger = nil
	}
}

func logMessage(level LogLevel, component string, message string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if level < currentLevel {
		return
	}

	now := time.Now()
	if fileLogger != nil {
		fileLogger.enc.Encode(logEntry{
			Level:     levelNames[level],
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Component: component,
			Message:   message,
			Fields:    fields,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", now.Format("2006-01-02 15:04:05"), levelNames[level])
	if component != "" {
		fmt.Fprintf(&b, " %s:", component)
	}
	b.WriteString(" ")
	b.WriteString(message)
	if len(fields) > 0 {
		b.WriteString(" ")
		b.WriteString(formatFields(fields))
	}
	stdLogger.Println(b.String())
}

func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}
