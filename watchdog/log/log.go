package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	customLog = newLogger(os.Stdout, os.Stderr, 0)
	mu        sync.RWMutex
)

type logger struct {
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	path  string
}

func newLogger(out, errOut io.Writer, flags int) logger {
	return logger{
		debug: log.New(out, "[DEBUG] ", flags),
		info:  log.New(out, "[INFOM] ", flags),
		warn:  log.New(out, "[WARNG] ", flags),
		err:   log.New(errOut, "[ERROR] ", flags),
	}
}

// InitLogger resets the logger to stdout/stderr.
func InitLogger() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetOutput redirects all levels. Error lines go to errOut.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	customLog = newLogger(out, errOut, 0)
}

// ResetLogger switches to a per-process log file under <home>/logs and
// returns the file path.
func ResetLogger(home string) (string, error) {
	if home == "" {
		osHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(osHome, ".oracle-watchdog")
	}

	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s.%d.log", filepath.Base(os.Args[0]), os.Getpid())
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	Infof("From now on, all logs will be written to %s", path)

	format := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	mu.Lock()
	customLog = newLogger(file, file, format)
	customLog.path = path
	mu.Unlock()

	return path, nil
}

func output(l func(logger) *log.Logger, s string) {
	mu.RLock()
	target := l(customLog)
	mu.RUnlock()

	_ = target.Output(3, s)
}

func debugLogger(l logger) *log.Logger { return l.debug }
func infoLogger(l logger) *log.Logger  { return l.info }
func warnLogger(l logger) *log.Logger  { return l.warn }
func errLogger(l logger) *log.Logger   { return l.err }

func Debug(v ...any) {
	output(debugLogger, fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	output(debugLogger, fmt.Sprintf(format, v...))
}

func Info(v ...any) {
	output(infoLogger, fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	output(infoLogger, fmt.Sprintf(format, v...))
}

func Warn(v ...any) {
	output(warnLogger, fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	output(warnLogger, fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	output(errLogger, fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	output(errLogger, fmt.Sprintf(format, v...))
}
