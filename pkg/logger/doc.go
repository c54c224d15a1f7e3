// Package logger provides structured logging built on zerolog.
//
// The Logger interface wraps zerolog with field-chaining helpers
// (WithField/WithFields/WithError) and level methods that accept a field map
// directly (InfoWithFields etc.). A global instance is initialized from the
// logging configuration at startup; library code obtains it with GetLogger.
//
// Console output uses zerolog's pretty writer; when a log file is configured,
// output is mirrored to it as JSON through a multi-level writer.
package logger
