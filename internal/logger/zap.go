package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger emits JSON-structured logs through go.uber.org/zap.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger at the given level.
func NewZapLogger(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(ParseLevel(level)))
	cfg.DisableStacktrace = true

	z, err := cfg.Build()
	if err != nil {
		return nil, wrapLoggerErr("create zap logger", ErrLogCreate, err, "")
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

// NewZapLoggerFrom wraps an existing zap logger.
func NewZapLoggerFrom(z *zap.Logger) Logger {
	return &ZapLogger{sugar: z.Sugar()}
}

func (zl *ZapLogger) Debug(msg string, fields ...interface{}) {
	zl.sugar.Debugw(msg, fields...)
}

func (zl *ZapLogger) Info(msg string, fields ...interface{}) {
	zl.sugar.Infow(msg, fields...)
}

func (zl *ZapLogger) Warn(msg string, fields ...interface{}) {
	zl.sugar.Warnw(msg, fields...)
}

func (zl *ZapLogger) Error(msg string, err error, fields ...interface{}) {
	zl.sugar.Errorw(msg, append([]interface{}{zap.Error(err)}, fields...)...)
}

// Close flushes buffered entries.
func (zl *ZapLogger) Close() error {
	// Sync on stdout/stderr returns EINVAL on some platforms; nothing is lost.
	_ = zl.sugar.Sync()
	return nil
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
