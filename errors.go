package kindenv

import (
	"github.com/giantswarm/kindenv/internal/core"
	"github.com/giantswarm/kindenv/internal/download"
	"github.com/giantswarm/kindenv/internal/forward"
	"github.com/giantswarm/kindenv/internal/runner"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrNotCreated is returned by cluster operations (Kubectl, PortForward,
	// RESTConfig, ...) before Create has succeeded or after Delete.
	ErrNotCreated = core.ErrNotCreated

	// ErrCreateRepairExhausted is returned by Create when every attempt
	// produced a cluster without usable credentials and the attempt budget
	// ran out.
	ErrCreateRepairExhausted = core.ErrCreateRepairExhausted

	// ErrPortForwardExhausted is returned by PortForward when no attempt
	// produced a live, connectable tunnel. The error chain includes the last
	// failure (process exit code or connect error).
	ErrPortForwardExhausted = forward.ErrExhausted

	// ErrDownload is returned by Create when fetching the kind or kubectl
	// binary fails.
	ErrDownload = download.ErrDownload
)

// ExitError reports a kind or kubectl invocation that exited non-zero. It
// carries the exit code and both captured output streams. Extract it from
// error chains with errors.As.
type ExitError = runner.ExitError
