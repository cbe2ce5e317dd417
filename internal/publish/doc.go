// Package publish ships packaged courses: it chooses between a single object
// and a segmented upload by size, merges the resulting entry into the course
// catalog, and records the publish on the owning task. Republish walks every
// course, picks its newest packaged task, and rebuilds the catalog from scratch.
package publish
