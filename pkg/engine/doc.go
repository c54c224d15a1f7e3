// Package engine runs bulk operations against the shared account pool.
//
// Each started operation gets one goroutine that processes its items strictly
// in order, persisting a checkpoint every few items so a crash or shutdown
// loses almost no progress. Pacing comes from a per-operation rate
// controller; account selection, reservation and flood-wait bookkeeping go
// through the pool shared by all concurrent operations.
package engine
