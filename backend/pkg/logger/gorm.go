package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	gormLogger "gorm.io/gorm/logger"
)

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

// Gorm returns a gorm logger that writes slow queries and errors through slog.
func Gorm(level string) gormLogger.Interface {
	logLevel := gormLogger.Warn
	switch level {
	case "debug":
		logLevel = gormLogger.Info
	case "error":
		logLevel = gormLogger.Error
	}

	return gormLogger.New(gormWriter{}, gormLogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
