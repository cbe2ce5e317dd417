// Package services defines shared utilities consumed by the pipeline state
// machine, the step executors, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, step names, and correlation
//     identifiers for logging and tracing.
//   - The coded Error type plus sentinel markers that classify failures into
//     the command exit categories (bad input, operation failed, integrity).
//   - Subpackages wrapping external collaborators (machine translation,
//     phonetic lookup, local transcription) behind small testable clients.
//
// Use these helpers when wiring new step logic so error reporting and
// observability stay uniform across the pipeline.
package services
