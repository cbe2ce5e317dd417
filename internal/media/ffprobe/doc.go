// Package ffprobe wraps the ffprobe CLI to inspect lesson media.
//
// Inspect decodes the full JSON stream/format report. The transcode step uses
// DurationMS for lesson metadata and the transcribe step uses
// PreferredSubtitle to find an embedded English subtitle track.
package ffprobe
