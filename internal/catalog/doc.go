// Package catalog maintains the published course catalog: a versioned list of
// course entries unique by id. Merge replaces an entry in place and keeps the
// order of everything else; Replace resets the catalog to a single entry.
// File updates run under an advisory lock beside the catalog file.
package catalog
