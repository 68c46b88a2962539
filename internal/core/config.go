package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ClusterConfig holds the fully resolved configuration for one Cluster. The
// public kindenv package fills defaults and environment overrides before
// handing the config to New; this package treats every field as final.
//
// All fields are immutable after New.
type ClusterConfig struct {
	// Name is the kind cluster name. Kind requires lowercase alphanumerics,
	// '-' and '.'.
	Name string
	// BaseDir is the root directory for all kindenv state: the binary cache,
	// the cluster registry, and the per-cluster directories.
	BaseDir string
	// KubeconfigPath overrides where the cluster credentials file is
	// written. Empty derives <BaseDir>/<Name>/kubeconfig.
	KubeconfigPath string
	// NodeImage pins the node image passed to cluster creation. Empty uses
	// the kind binary's built-in default.
	NodeImage string
	// ConfigFile is a kind cluster configuration YAML passed to creation.
	ConfigFile string

	// KindVersion and KubectlVersion select the CLI binaries to download.
	// Required unless the corresponding explicit binary path is set.
	KindVersion    string
	KubectlVersion string
	// KindURL and KubectlURL override the download URLs. Empty derives the
	// upstream release URL for the configured version and the host
	// platform.
	KindURL    string
	KubectlURL string
	// KindBinary and KubectlBinary point at existing binaries, skipping the
	// download entirely.
	KindBinary    string
	KubectlBinary string

	// CreateAttempts bounds the create-and-repair loop: a cluster whose
	// credentials file stays unpopulated is deleted and recreated at most
	// this many times in total.
	CreateAttempts int
	// CreateTimeout bounds one whole Create call, downloads included.
	CreateTimeout time.Duration
	// ReadyTimeout bounds the post-create wait for the API server and node
	// readiness. Zero skips the wait.
	ReadyTimeout time.Duration

	// ForwardRetries and ForwardSettleInterval configure port-forward
	// establishment, see the forward package.
	ForwardRetries        int
	ForwardSettleInterval time.Duration

	// HTTPClient is used for binary downloads (optional, defaults to
	// http.DefaultClient).
	HTTPClient *http.Client
	// Logger (optional, defaults to the package logger).
	Logger *slog.Logger
}

// Validate checks all ClusterConfig invariants and returns an error
// describing every violation found. It uses errors.Join to report multiple
// issues at once, allowing callers to fix all problems in a single pass
// rather than playing whack-a-mole with one error at a time.
func (c ClusterConfig) Validate() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, errors.New("cluster name must not be empty"))
	} else if !validClusterName(c.Name) {
		errs = append(errs, fmt.Errorf("cluster name %q must consist of lowercase alphanumerics, '-' and '.'", c.Name))
	}
	if c.BaseDir == "" {
		errs = append(errs, errors.New("base directory must not be empty"))
	}
	if c.KindVersion == "" && c.KindBinary == "" {
		errs = append(errs, errors.New("kind version or explicit kind binary must be set"))
	}
	if c.KubectlVersion == "" && c.KubectlBinary == "" {
		errs = append(errs, errors.New("kubectl version or explicit kubectl binary must be set"))
	}
	if c.CreateAttempts <= 0 {
		errs = append(errs, fmt.Errorf("create attempts must be greater than 0, got %d", c.CreateAttempts))
	}
	if c.CreateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("create timeout must be greater than 0, got %s", c.CreateTimeout))
	}
	if c.ReadyTimeout < 0 {
		errs = append(errs, fmt.Errorf("ready timeout must not be negative, got %s", c.ReadyTimeout))
	}
	if c.ForwardRetries <= 0 {
		errs = append(errs, fmt.Errorf("port-forward retries must be greater than 0, got %d", c.ForwardRetries))
	}
	if c.ForwardSettleInterval <= 0 {
		errs = append(errs, fmt.Errorf("port-forward settle interval must be greater than 0, got %s", c.ForwardSettleInterval))
	}

	return errors.Join(errs...)
}

// validClusterName reports whether name is acceptable to kind, which uses it
// both as a Docker container name prefix and a kubeconfig context name.
func validClusterName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}
