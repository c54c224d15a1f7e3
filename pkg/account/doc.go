// Package account manages the shared pool of credentialed sessions.
//
// The pool is the only state touched by multiple concurrent operations, so
// every read and mutation is serialized behind one mutex. Selection is
// round-robin with an independent rotation cursor per operation kind, which
// keeps concurrent scrape and invite operations from starving each other.
//
// An account is eligible for selection when it is active, not reserved for a
// different operation kind, past any server-imposed flood wait, under its
// daily quota for the requested kind, and (when required) configured with a
// proxy. A failed scan still advances the cursor by one position so repeated
// scans do not pin the same starting account.
package account
