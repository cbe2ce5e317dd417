// Package steps implements the seven pipeline step executors.
//
// Media steps (transcode, transcribe, align) drive ffmpeg, ffprobe and
// whisper and write per-lesson artifacts. The gated steps (translate,
// grammar, summarize) follow the HITL triple contract: they snapshot their
// input, prefer an operator override, and otherwise generate output, always
// leaving an effective artifact behind. Package assembles the distributable
// course tree and its archive.
//
// Every executor is deterministic given its inputs and safe to re-run.
package steps
