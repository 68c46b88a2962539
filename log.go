package kindenv

import (
	"log/slog"

	"github.com/giantswarm/kindenv/internal/core"
)

// SetLogger replaces the package-level logger used by kindenv. If l is nil,
// the logger resets to the default: slog.Default() with a "component"
// attribute.
//
// SetLogger is safe to call concurrently with other kindenv operations.
// A cluster captures the logger in effect when New is called.
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
