package models

import (
	"testing"
	"time"
)

func TestStatusLifecycleTransitions(t *testing.T) {
	tests := []struct {
		from OperationStatus
		to   OperationStatus
		want bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPaused, true},
		{StatusRunning, StatusPending, false},
		{StatusPaused, StatusRunning, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
	}

	for _, tt := range tests {
		state := &OperationState{Status: tt.from}
		if got := state.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed and failed are terminal")
	}
	if StatusPending.IsTerminal() || StatusRunning.IsTerminal() || StatusPaused.IsTerminal() {
		t.Error("pending, running and paused are not terminal")
	}
}

func TestInFloodWait(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	acc := Account{}
	if acc.InFloodWait(now) {
		t.Error("zero flood wait should report not waiting")
	}

	acc.FloodWaitUntil = now.Add(time.Minute)
	if !acc.InFloodWait(now) {
		t.Error("future flood wait should report waiting")
	}
	if acc.InFloodWait(now.Add(2 * time.Minute)) {
		t.Error("expired flood wait should report not waiting")
	}
}

func TestHasProxy(t *testing.T) {
	acc := Account{}
	if acc.HasProxy() {
		t.Error("no proxy configured")
	}

	acc.Proxy = &Proxy{Kind: ProxySOCKS5}
	if acc.HasProxy() {
		t.Error("proxy without host does not count")
	}

	acc.Proxy.Host = "127.0.0.1"
	if !acc.HasProxy() {
		t.Error("proxy with host should count")
	}
}
