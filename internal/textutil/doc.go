// Package textutil provides small text helpers shared across the pipeline:
// course identifier and title derivation, tag splitting, placeholder
// detection, and filesystem-safe token sanitization.
package textutil
