// Package logging provides leveled, printf-style logging for the thumbnail
// service and its tools.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (cache hits, coalesced requests)
//   - INFO: General operational messages
//   - WARN: Warning conditions (failed disk cache writes)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level is read once from DEBUG or LOG_LEVEL and can be overridden with
// SetLevel. For returns a Logger that prefixes messages with a component name.
package logging
