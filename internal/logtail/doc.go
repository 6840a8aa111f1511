// Package logtail reads the tail of skiff's log file for the logs view.
//
// Read keeps a ring buffer of maxLines, so memory stays bounded however large
// the file grows. A missing file yields no lines and no error.
//
// The log file holds zerolog JSON lines. Parse turns one into an Entry with
// the header keys (time, level, component, message) split out and the
// remaining keys sorted as fields:
//
//	{"level":"info","component":"stream","time":"2026-10-16T21:01:05Z","pid":42,"message":"started"}
//	21:01:05 INFO [stream] started pid=42
//
// Lines that are not JSON, such as helper output, pass through unchanged.
package logtail
