// logger/logger.go - Colored leveled logging
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu           sync.Mutex
	out          io.Writer = os.Stdout
	errOut       io.Writer = os.Stderr
	debugEnabled           = false

	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	debugColor   = color.New(color.FgHiBlack)
)

// SetDebug toggles Debug output.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugEnabled = enabled
}

// SetOutput redirects all log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	errOut = w
}

func Info(format string, args ...interface{}) {
	write(out, infoColor, "INFO", format, args...)
}

func Success(format string, args ...interface{}) {
	write(out, successColor, "OK", format, args...)
}

func Warn(format string, args ...interface{}) {
	write(out, warnColor, "WARN", format, args...)
}

func Error(format string, args ...interface{}) {
	write(errOut, errorColor, "ERROR", format, args...)
}

func Debug(format string, args ...interface{}) {
	mu.Lock()
	enabled := debugEnabled
	mu.Unlock()
	if !enabled {
		return
	}
	write(out, debugColor, "DEBUG", format, args...)
}

// Fatal logs at error level and exits.
func Fatal(format string, args ...interface{}) {
	Error(format, args...)
	os.Exit(1)
}

func write(w io.Writer, c *color.Color, level, format string, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05")
	message := fmt.Sprintf(format, args...)

	mu.Lock()
	defer mu.Unlock()
	c.Fprintf(w, "[%s] %-5s %s\n", timestamp, level, message)
}
