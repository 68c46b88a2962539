// Package download implements a content-addressed local store for external
// tool binaries, keyed by (tool, version, platform, arch).
//
// A binary that is already present at its cache path is never re-downloaded.
// Downloads stream to a temporary file in the final directory and are renamed
// into place, so an interrupted transfer never leaves a partial file at the
// cache path. Concurrent callers are deduplicated in-process via singleflight
// and across processes via a file lock next to the cache path; even without
// the lock the atomic rename guarantees at worst a redundant download, never
// a corrupt binary.
package download
