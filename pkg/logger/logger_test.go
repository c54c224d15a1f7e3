package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"gramops/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "nope"})
	if err == nil {
		t.Error("invalid level should be rejected")
	}
}

func TestTestLoggerCapturesDerivedLoggers(t *testing.T) {
	log := NewTestLogger()

	child := log.WithField("operation_id", "op-1").WithFields(map[string]interface{}{"kind": "scrape"})
	child.Info("checkpoint saved")
	log.Warn("pool exhausted")

	if !log.HasMessage("checkpoint saved") {
		t.Error("parent should capture messages logged through derived loggers")
	}
	if !log.HasMessage("pool exhausted") {
		t.Error("parent should capture its own messages")
	}

	messages := log.Messages()
	if len(messages) != 2 {
		t.Fatalf("captured %d messages, want 2", len(messages))
	}
	if messages[0].Fields["operation_id"] != "op-1" || messages[0].Fields["kind"] != "scrape" {
		t.Errorf("derived fields not attached: %v", messages[0].Fields)
	}
}

func TestWithErrorNilIsNoop(t *testing.T) {
	log := NewTestLogger()
	if log.WithError(nil) != Logger(log) {
		t.Error("WithError(nil) should return the same logger")
	}
}
