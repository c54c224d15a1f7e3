package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log messages for assertions in tests. Loggers derived
// via WithField/WithFields share the parent's message store, so a test can
// hand a TestLogger to a component and inspect everything it logged.
type TestLogger struct {
	rec     *recorder
	fields  map[string]interface{}
	zerolog *zerolog.Logger
}

type recorder struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	nopLogger := zerolog.Nop()
	return &TestLogger{
		rec:     &recorder{},
		fields:  make(map[string]interface{}),
		zerolog: &nopLogger,
	}
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = append(l.rec.messages, LogMessage{Level: level, Message: msg, Fields: merged})
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}
func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}
func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}
func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

// WithField returns a logger that tags subsequent messages with the field.
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger that tags subsequent messages with the fields.
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	child := &TestLogger{
		rec:     l.rec,
		fields:  make(map[string]interface{}, len(l.fields)+len(fields)),
		zerolog: l.zerolog,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// WithError adds an error field.
func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// GetZerolog returns a no-op zerolog instance.
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return l.zerolog
}

// Messages returns a copy of the captured messages.
func (l *TestLogger) Messages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	out := make([]LogMessage, len(l.rec.messages))
	copy(out, l.rec.messages)
	return out
}

// HasMessage reports whether any captured message contains the given text.
func (l *TestLogger) HasMessage(text string) bool {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	for _, m := range l.rec.messages {
		if m.Message == text {
			return true
		}
	}
	return false
}
