// Package netutil provides network utility functions for kindenv.
// Its central type, PortRegistry, picks pseudo-random local ports for
// port-forward tunnels and tracks reserved ports across the process to
// prevent two concurrent port-forward sessions from racing on the same
// local port. Probe performs the raw TCP connect used as the tunnel
// readiness check.
package netutil
