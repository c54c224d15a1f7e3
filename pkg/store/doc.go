// Package store persists operation state so long-running batches survive
// process restarts.
//
// The OperationStore contract is small: create, atomic upsert by operation
// id, point lookup, and a status-filtered listing used to find resumable
// work at startup. The SQLite implementation keeps one row per operation;
// rows for completed operations are retained for audit and history.
package store
