// Package proc provides utilities for managing external process lifecycle.
//
// It defines BaseProcess for common process start/stop behavior with exit
// observation, WaitReady for polling-based readiness checks, and LogFiles
// for capturing process stdout/stderr to files. The
// port-forward session builds on BaseProcess to supervise its background
// kubectl process.
package proc
