package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "uart-test.log"
)

var (
	logFile     *os.File
	logDir      string
	mu          sync.Mutex
	initialized bool
	stopCheck   chan struct{}

	// Diagnostics are dropped until Init: stdout belongs to the operator
	std = log.New(io.Discard, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

// Init initializes the logger with a log directory
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	logDir = dir

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file
	logPath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	std.SetOutput(file)
	initialized = true
	stopCheck = make(chan struct{})

	// Check log directory size on startup
	rotateIfNeededLocked()

	// Start periodic size check
	go periodicSizeCheck(stopCheck)

	std.Printf("[INFO] Logger initialized")
	return nil
}

// Close closes the log file
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return
	}
	close(stopCheck)
	std.SetOutput(io.Discard)
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initialized = false
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	std.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	std.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	std.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Protocol logs raw link traffic
func Protocol(direction, event string, data []byte) {
	if len(data) > 100 {
		std.Printf("[PROTO] %s %s data_len=%d first_100=%x...", direction, event, len(data), data[:100])
	} else {
		std.Printf("[PROTO] %s %s data=%x", direction, event, data)
	}
}

// rotateIfNeededLocked checks directory size and rotates if necessary.
// Caller holds mu.
func rotateIfNeededLocked() {
	size, err := getDirSize(logDir)
	if err != nil {
		std.Printf("[LOGGER] Error checking directory size: %v", err)
		return
	}

	if size > MaxLogDirSize {
		rotateOldLogs()
	}
}

// getDirSize calculates total size of files in directory
func getDirSize(dir string) (int64, error) {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// rotateOldLogs removes old log files when directory exceeds size limit
func rotateOldLogs() {
	currentLogPath := filepath.Join(logDir, LogFileName)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		std.Printf("[LOGGER] Error reading log directory: %v", err)
		return
	}

	// Remove old archived logs first (keep current log)
	for _, entry := range entries {
		if entry.Name() == LogFileName || entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(logDir, entry.Name())); err != nil {
			std.Printf("[LOGGER] Error removing old log %s: %v", entry.Name(), err)
		} else {
			std.Printf("[LOGGER] Removed old log: %s", entry.Name())
		}
	}

	size, _ := getDirSize(logDir)
	if size <= MaxLogDirSize {
		return
	}

	// Current log is still too big: start over with an empty file
	if logFile != nil {
		logFile.Close()
	}
	file, err := os.OpenFile(currentLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		std.SetOutput(io.Discard)
		logFile = nil
		return
	}
	logFile = file
	std.SetOutput(file)
	std.Printf("[LOGGER] Log truncated at %s", time.Now().Format(time.RFC3339))
}

// periodicSizeCheck checks log directory size every hour
func periodicSizeCheck(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mu.Lock()
			if initialized {
				rotateIfNeededLocked()
			}
			mu.Unlock()
		}
	}
}
