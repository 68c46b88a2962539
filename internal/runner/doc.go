// Package runner executes the Kubernetes CLI against a cluster's
// credentials, capturing output and surfacing non-zero exits as typed
// errors. It also builds the exec.Cmd used by the port-forward session so
// that credential injection lives in exactly one place.
package runner
