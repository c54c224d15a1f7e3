package store

import (
	"context"
	"errors"

	"gramops/pkg/models"
)

// ErrNotFound is returned when no operation exists for the requested id.
var ErrNotFound = errors.New("operation not found")

// OperationStore persists operation state durably across process restarts.
// Update is an atomic upsert per record: concurrent writers updating
// different operations never corrupt each other's row.
type OperationStore interface {
	// Create persists a new operation record.
	Create(ctx context.Context, state *models.OperationState) error

	// Update upserts the record identified by state.ID.
	Update(ctx context.Context, state *models.OperationState) error

	// Get retrieves one operation, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.OperationState, error)

	// ListByStatus retrieves operations in any of the given statuses,
	// oldest first. Used to find resumable work at startup.
	ListByStatus(ctx context.Context, statuses ...models.OperationStatus) ([]*models.OperationState, error)

	// Close releases the store's resources.
	Close() error
}
