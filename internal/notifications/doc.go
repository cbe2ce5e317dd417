// Package notifications sends ntfy push messages for task outcomes.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers can publish unconditionally.
package notifications
