// Package whisper invokes the openai-whisper CLI to produce English SRT
// subtitles when a lesson has neither a sidecar nor an embedded track.
//
// The command runner is replaceable so tests can fake the binary and drop an
// SRT file where whisper would.
package whisper
