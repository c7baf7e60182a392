package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = build("console")
)

func build(format string) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.ToLower(format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	return zap.New(core).Sugar()
}

func SetLevel(lvl string) {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		level.SetLevel(zapcore.ErrorLevel)
	}
}

// SetFormat rebuilds the backing logger with the given encoder ("console" or "json").
func SetFormat(format string) {
	sugar = build(format)
}

func Debug(format string, v ...any) {
	sugar.Debugf(format, v...)
}

func Info(format string, v ...any) {
	sugar.Infof(format, v...)
}

func Warn(format string, v ...any) {
	sugar.Warnf(format, v...)
}

func Error(format string, v ...any) {
	sugar.Errorf(format, v...)
}

// Fatal logs the message and exits the process with status 1.
func Fatal(format string, v ...any) {
	sugar.Fatalf(format, v...)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = sugar.Sync()
}
