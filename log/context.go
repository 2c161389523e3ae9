package log

import "context"

type loggerKey struct{}

// ToContext attaches logger to ctx.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the Logger attached to ctx, or Noop if none was
// attached.
func FromContext(ctx context.Context) Logger {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok || logger == nil {
		return Noop
	}
	return logger
}
