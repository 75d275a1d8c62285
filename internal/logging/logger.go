// Package logging provides unified logging infrastructure for nmrcerm
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger wraps the standard logger with optional file output
type Logger struct {
	*log.Logger
	file *os.File
	mu   sync.Mutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// LogFileName is the file created inside the configured log directory
const LogFileName = "nmrcerm.log"

// Initialize sets up the logging system with stderr and file output
func Initialize(logDir string) error {
	var initErr error
	once.Do(func() {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		logPath := filepath.Join(logDir, LogFileName)
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}

		multiWriter := io.MultiWriter(os.Stderr, file)

		defaultLogger = &Logger{
			Logger: log.New(multiWriter, "", log.LstdFlags),
			file:   file,
		}

		log.SetOutput(multiWriter)
		log.SetFlags(log.LstdFlags)

		log.Printf("Logging initialized: %s", logPath)
	})
	return initErr
}

// SetOutput redirects log output, mainly for tests and the CLI's quiet mode.
func SetOutput(w io.Writer) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defer defaultLogger.mu.Unlock()
		defaultLogger.SetOutput(w)
	}
	log.SetOutput(w)
}

// Close closes the log file
func Close() error {
	if defaultLogger != nil && defaultLogger.file != nil {
		return defaultLogger.file.Close()
	}
	return nil
}

func output(msg string) {
	if defaultLogger != nil {
		defaultLogger.Println(msg)
	} else {
		log.Println(msg)
	}
}

// Errorf logs an error message
func Errorf(format string, v ...interface{}) {
	output(fmt.Sprintf("[ERROR] "+format, v...))
}

// Warnf logs a warning message
func Warnf(format string, v ...interface{}) {
	output(fmt.Sprintf("[WARN] "+format, v...))
}

// Infof logs an info message
func Infof(format string, v ...interface{}) {
	output(fmt.Sprintf("[INFO] "+format, v...))
}

// Debugf logs a debug message (only when DEBUG=true)
func Debugf(format string, v ...interface{}) {
	if os.Getenv("DEBUG") == "true" {
		output(fmt.Sprintf("[DEBUG] "+format, v...))
	}
}
