// Package transfer moves one large file through an object store in
// fixed-size parts and reconstructs it with end-to-end integrity checks.
//
// Upload streams the source once, hashing each part and the whole file as it
// goes, and writes the manifest only after every part landed. Download
// validates the manifest before any I/O, fetches parts strictly in index
// order, and discards the output file unless both the size and the SHA-256
// declared by the manifest match.
package transfer
