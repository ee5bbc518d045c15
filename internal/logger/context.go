package logger

import "context"

type contextKey struct{}

var loggerKey = contextKey{}

// WithContext stores l in ctx so downstream code can recover it.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// CtxInfo logs at info level using the context logger.
func CtxInfo(ctx context.Context, msg string, fields Fields) {
	FromContext(ctx).WithFields(fields).Info(msg)
}

// CtxWarn logs at warn level using the context logger.
func CtxWarn(ctx context.Context, msg string, fields Fields) {
	FromContext(ctx).WithFields(fields).Warn(msg)
}

// CtxError logs at error level using the context logger.
func CtxError(ctx context.Context, msg string, err error, fields Fields) {
	FromContext(ctx).WithError(err).WithFields(fields).Error(msg)
}

// CtxDebug logs at debug level using the context logger.
func CtxDebug(ctx context.Context, msg string, fields Fields) {
	FromContext(ctx).WithFields(fields).Debug(msg)
}
