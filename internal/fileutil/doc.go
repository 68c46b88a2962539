// Package fileutil provides file operation utilities for directory and file management.
//
// EnsureDir creates directories recursively, Touch creates empty files with
// explicit permissions, and WriteStreamAtomic streams data to a file via
// temp-file-then-rename so concurrent readers never observe partial content.
// These are used throughout kindenv for preparing cluster storage directories,
// creating kubeconfig files, and caching downloaded binaries.
package fileutil
