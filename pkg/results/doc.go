// Package results stores the output of scrape operations.
//
// Members are deduplicated by their ID, which is what makes resuming safe:
// when a crashed operation re-fetches the page it was interrupted in, the
// sink silently drops the members it already holds. Files are written
// atomically via temp-file-and-rename.
package results
