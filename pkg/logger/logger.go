// Package logger provides the file-backed run log shared by all packages.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	verbose      bool
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	verbose = debug
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
		globalLogger = nil
	}
}

func emit(level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Printf(level+" "+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	emit("[INFO]", format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	emit("[WARN]", format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	emit("[ERROR]", format, v...)
}

// Debug logs a debug message when verbose logging is enabled.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	enabled := verbose
	mu.Unlock()
	if enabled {
		emit("[DEBUG]", format, v...)
	}
}

// GetWriter returns the underlying writer for subprocess output.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
