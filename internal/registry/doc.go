// Package registry persists a record of clusters created by this harness in
// a small SQLite database under the base directory.
//
// The registry is bookkeeping only: the bootstrapper remains the source of
// truth for which clusters exist. Rows let the test integration warn about
// clusters left behind by crashed runs and let callers enumerate what this
// harness has created without shelling out.
package registry
