package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one operational diagnostics line. This is deliberately not
// the audit trail: audit records are persisted product data, log entries
// are ephemeral JSON lines on stdout.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type Logger struct {
	output io.Writer
}

var globalLogger *Logger

func New(output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{output: output}
}

func Init() {
	globalLogger = New(os.Stdout)
}

func (l *Logger) log(level LogLevel, action string, details map[string]interface{}, err error) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Action:    action,
		Details:   details,
	}

	if err != nil {
		entry.Error = err.Error()
	}

	data, _ := json.Marshal(entry)

	if l.output == os.Stdout {
		var colorCode string
		switch level {
		case LevelError:
			colorCode = "\033[31m"
		case LevelWarn:
			colorCode = "\033[33m"
		default:
			colorCode = "\033[36m"
		}
		fmt.Fprintf(l.output, "%s%s\033[0m\n", colorCode, string(data))
	} else {
		fmt.Fprintf(l.output, "%s\n", string(data))
	}
}

func Info(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelInfo, action, details, nil)
	}
}

func Warn(action string, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelWarn, action, details, nil)
	}
}

func Error(action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelError, action, details, err)
	}
}

func GenerateRequestID() string {
	return uuid.New().String()
}

// GetTokenIDFromContext returns the id of the authenticated token set by
// the auth middleware, if any.
func GetTokenIDFromContext(c *fiber.Ctx) *int64 {
	if value := c.Locals("tokenID"); value != nil {
		if id, ok := value.(int64); ok {
			return &id
		}
	}
	return nil
}
