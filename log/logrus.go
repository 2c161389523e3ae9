package log

import "github.com/sirupsen/logrus"

// LogrusLogger adapts a *logrus.Logger to the Logger interface. This is the
// default used by cmd/shalo; library callers embedding the core packages
// are free to inject any other Logger via ToContext.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l. A nil l uses logrus's standard logger.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) fields(keysAndValues []any) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.entry.WithFields(l.fields(keysAndValues)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.entry.WithFields(l.fields(keysAndValues)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.entry.WithFields(l.fields(keysAndValues)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.entry.WithFields(l.fields(keysAndValues)).Error(msg)
}
