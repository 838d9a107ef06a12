package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once      sync.Once
	singleton *log.Logger
)

func getLogger() *log.Logger {
	once.Do(func() {
		singleton = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "retarget",
			Level:           log.InfoLevel,
		})
	})
	return singleton
}

// SetLevel accepts debug, info, warn, error and fatal.
func SetLevel(name string) error {
	lv, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	getLogger().SetLevel(lv)
	return nil
}

func SetOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

// With returns a child logger carrying the given key/value pairs.
func With(keyvals ...interface{}) *log.Logger {
	return getLogger().With(keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Error(msg, keyvals...)
}

func Fatal(msg string, keyvals ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Fatal(msg, keyvals...)
}
