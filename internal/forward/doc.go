// Package forward establishes a background port-forward tunnel from a local
// TCP port to a port exposed by a resource inside the cluster.
//
// Establishment is a bounded retry loop: each attempt launches the CLI's
// port-forward subcommand, waits a short settle interval, and then health
// checks the attempt: first by polling the process exit status, then by a
// raw TCP connect to the chosen local port. A stale attempt's process is
// terminated before the next attempt starts, in every retry path. Once
// established, the session guarantees the background process is terminated
// when Close is called, normal exit or not.
package forward
