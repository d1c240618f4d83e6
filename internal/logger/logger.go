package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var L *zap.SugaredLogger

func init() {
	Init()
}

// Init builds the global logger. JSON output in production, console
// output otherwise (APP_ENV). Called again from main after the
// environment is loaded.
func Init() {
	env := os.Getenv("APP_ENV")

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	level := zap.DebugLevel
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zap.InfoLevel
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level))
	L = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}

func Infof(format string, args ...interface{})  { L.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { L.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { L.Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { L.Debugf(format, args...) }
func Fatalf(format string, args ...interface{}) { L.Fatalf(format, args...) }
