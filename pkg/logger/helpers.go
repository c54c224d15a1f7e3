package logger

import (
	"time"

	"gramops/pkg/models"
)

// LogFloodWait logs a server-imposed wait on an account.
func LogFloodWait(account string, kind models.OperationKind, seconds int) {
	GetLogger().WithFields(map[string]interface{}{
		"account":     account,
		"kind":        string(kind),
		"retry_after": seconds,
		"action":      "flood_wait",
	}).Warn("Flood wait reported, backing off account")
}

// LogOperationProgress logs progress of a running operation.
func LogOperationProgress(operationID string, completed, failed, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(completed) / float64(total) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"operation_id": operationID,
		"completed":    completed,
		"failed":       failed,
		"total":        total,
		"percentage":   percentage,
	}).Info("Operation progress")
}

// LogAccountSwitch logs the executor abandoning one account for another.
func LogAccountSwitch(operationID, from string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"operation_id": operationID,
		"account":      from,
		"reason":       reason,
	}).Info("Switching accounts")
}

// LogCheckpoint logs a persisted checkpoint.
func LogCheckpoint(operationID, cursor string, completed int) {
	GetLogger().WithFields(map[string]interface{}{
		"operation_id": operationID,
		"cursor":       cursor,
		"completed":    completed,
		"at":           time.Now(),
	}).Debug("Checkpoint persisted")
}
