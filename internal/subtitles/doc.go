// Package subtitles reads and writes SRT subtitle files.
//
// Cues carry millisecond timestamps. Parsing is lenient: blocks are split on
// blank lines, the numeric index line is optional, and multi-line cue text is
// joined with single spaces.
package subtitles
