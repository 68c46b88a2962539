// Package core implements the kind cluster lifecycle: provisioning the kind
// and kubectl binaries, creating a cluster with a bounded repair loop,
// waiting for node readiness, loading images, running kubectl, opening
// port-forward tunnels, and deleting the cluster. The public kindenv package
// is a thin facade over this package.
package core
