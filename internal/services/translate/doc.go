// Package translate talks to the public Google translate endpoint used to
// produce Chinese subtitle lines.
//
// Single lines go through a GET request. BatchTranslate deduplicates input,
// packs it into separator-joined chunks sent as POST form bodies, and falls
// back to per-line requests for any chunk whose response cannot be split
// back into the expected number of lines. Failures never abort a batch: the
// caller receives an empty string for every line that could not be
// translated and decides on its own placeholder.
package translate
