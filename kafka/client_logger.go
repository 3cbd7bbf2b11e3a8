package kafka

import (
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// kgoZapLogger forwards franz-go client logs to zap.
type kgoZapLogger struct {
	logger *zap.SugaredLogger
}

func newKgoZapLogger(logger *zap.Logger) kgoZapLogger {
	return kgoZapLogger{logger: logger.Sugar()}
}

// Level returns the franz-go log level matching the zap level, franz-go skips building messages below it.
func (k kgoZapLogger) Level() kgo.LogLevel {
	desugared := k.logger.Desugar()
	switch {
	case desugared.Core().Enabled(zap.DebugLevel):
		return kgo.LogLevelDebug
	case desugared.Core().Enabled(zap.InfoLevel):
		return kgo.LogLevelInfo
	case desugared.Core().Enabled(zap.WarnLevel):
		return kgo.LogLevelWarn
	default:
		return kgo.LogLevelError
	}
}

func (k kgoZapLogger) Log(level kgo.LogLevel, msg string, keyvals ...interface{}) {
	switch level {
	case kgo.LogLevelNone:
		// Don't log anything.
	case kgo.LogLevelDebug:
		k.logger.Debugw(msg, keyvals...)
	case kgo.LogLevelInfo:
		k.logger.Infow(msg, keyvals...)
	case kgo.LogLevelWarn:
		k.logger.Warnw(msg, keyvals...)
	case kgo.LogLevelError:
		k.logger.Errorw(msg, keyvals...)
	}
}
