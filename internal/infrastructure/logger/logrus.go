package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type logrusLogger struct {
	// base is shared by every derived logger so level and output changes
	// apply to all of them.
	base  *logrus.Logger
	entry *logrus.Entry
}

// NewLogrusLogger builds the process logger from config.
func NewLogrusLogger(config *Config) Logger {
	base := logrus.New()
	base.SetLevel(toLogrusLevel(config.Level))
	base.SetFormatter(newFormatter(config.Format))
	base.SetOutput(newOutput(config))

	fields := make(logrus.Fields, len(config.Fields))
	for k, v := range config.Fields {
		fields[k] = v
	}

	return &logrusLogger{
		base:  base,
		entry: logrus.NewEntry(base).WithFields(fields),
	}
}

// NewNopLogger discards everything.
func NewNopLogger() Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &logrusLogger{base: base, entry: logrus.NewEntry(base)}
}

func newFormatter(format string) logrus.Formatter {
	switch format {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: isoMillis,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyFunc: "caller",
			},
		}
	case "text":
		return &logrus.TextFormatter{
			TimestampFormat: isoMillis,
			FullTimestamp:   true,
			DisableColors:   true,
		}
	default:
		return &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceColors:     true,
		}
	}
}

// newOutput picks the sink. "file" without a path falls back to stdout.
func newOutput(config *Config) io.Writer {
	switch {
	case config.Output == "stderr":
		return os.Stderr
	case config.Output == "file" && config.FilePath != "":
		return &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		}
	default:
		return os.Stdout
	}
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *logrusLogger) derive(entry *logrus.Entry) Logger {
	return &logrusLogger{base: l.base, entry: entry}
}

func (l *logrusLogger) Debug(msg string)                  { l.entry.Debug(msg) }
func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(msg string)                   { l.entry.Info(msg) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(msg string)                   { l.entry.Warn(msg) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(msg string)                  { l.entry.Error(msg) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Fatal(msg string)                  { l.entry.Fatal(msg) }
func (l *logrusLogger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return l.derive(l.entry.WithField(key, value))
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return l.derive(l.entry.WithFields(logrus.Fields(fields)))
}

// WithContext attaches ctx and any fields stored with ContextWithFields.
func (l *logrusLogger) WithContext(ctx context.Context) Logger {
	entry := l.entry.WithContext(ctx)
	if fields := FieldsFromContext(ctx); len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return l.derive(entry)
}

func (l *logrusLogger) SetLevel(level Level) {
	l.base.SetLevel(toLogrusLevel(level))
}

func (l *logrusLogger) SetOutput(output io.Writer) {
	l.base.SetOutput(output)
}
