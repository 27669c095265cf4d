package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"

	"sjsage522/pricewatcher/logger"
)

// LoggerInterface defines the interface for logger implementations
type LoggerInterface interface {
	LogError(name string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger writes failures to an append-only journal file in addition to the structured log
type Logger struct {
	mu        sync.Mutex
	errorFile string
}

// NewLogger creates a new logger instance; an empty errorFile disables the journal
func NewLogger(errorFile string) *Logger {
	return &Logger{
		errorFile: errorFile,
	}
}

// LogError logs an error to a file with the failing product or component name and timestamp
func (l *Logger) LogError(name string, err error) {
	logger.LogError("journal", err, "%s failed", name)

	if l.errorFile == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.Warn("failed to open error journal %s: %v", l.errorFile, fileErr)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, name, err.Error())
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	logger.Info(format, args...)
}
