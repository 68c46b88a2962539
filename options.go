package kindenv

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/giantswarm/kindenv/internal/core"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("kindenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("kindenv: %s must not be empty", name))
	}
}

// clusterConfig wraps the internal config so option closures cannot be
// constructed outside this package.
type clusterConfig struct {
	core.ClusterConfig
}

// Option configures a Cluster during construction via New. Each With*
// function returns an Option that sets a specific field.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations). These panics are intentional: option values are typically
// compile-time constants or package-level variables, so an invalid value
// indicates a programmer error rather than a runtime condition. The pattern
// mirrors [regexp.MustCompile], failing fast during initialization instead
// of returning errors that would be universally fatal anyway.
type Option func(*clusterConfig)

// WithBaseDir sets the root directory for all kindenv state: the binary
// cache, the cluster registry, and the per-cluster directories. Useful in CI
// environments where multiple projects share a machine and need isolated
// state directories.
//
// Default: DefaultBaseDirName, relative to the working directory.
//
// Panics if dir is empty.
func WithBaseDir(dir string) Option {
	requireNonEmpty("base directory", dir)
	return func(c *clusterConfig) {
		c.BaseDir = dir
	}
}

// WithKubeconfigPath overrides where the cluster credentials file is
// written. Default: <BaseDir>/<name>/kubeconfig.
// Panics if path is empty.
func WithKubeconfigPath(path string) Option {
	requireNonEmpty("kubeconfig path", path)
	return func(c *clusterConfig) {
		c.KubeconfigPath = path
	}
}

// WithNodeImage pins the kind node image (e.g.,
// "kindest/node:v1.28.9"), which determines the Kubernetes version running
// inside the cluster. Default: the kind binary's built-in default image.
// Panics if image is empty.
func WithNodeImage(image string) Option {
	requireNonEmpty("node image", image)
	return func(c *clusterConfig) {
		c.NodeImage = image
	}
}

// WithConfigFile passes a kind cluster configuration YAML to cluster
// creation, for multi-node topologies, port mappings, and the like.
// Panics if path is empty.
func WithConfigFile(path string) Option {
	requireNonEmpty("cluster config file", path)
	return func(c *clusterConfig) {
		c.ConfigFile = path
	}
}

// WithKindVersion sets the kind release to download.
// Default: DefaultKindVersion, overridable via KIND_VERSION.
// Panics if version is empty.
func WithKindVersion(version string) Option {
	requireNonEmpty("kind version", version)
	return func(c *clusterConfig) {
		c.KindVersion = version
	}
}

// WithKubectlVersion sets the kubectl release to download.
// Default: DefaultKubectlVersion, overridable via KUBECTL_VERSION.
// Panics if version is empty.
func WithKubectlVersion(version string) Option {
	requireNonEmpty("kubectl version", version)
	return func(c *clusterConfig) {
		c.KubectlVersion = version
	}
}

// WithKindURL overrides the kind download URL entirely, e.g. to point at an
// internal mirror. Default: the upstream GitHub release URL derived from the
// configured version and the host platform.
// Panics if url is empty.
func WithKindURL(url string) Option {
	requireNonEmpty("kind download URL", url)
	return func(c *clusterConfig) {
		c.KindURL = url
	}
}

// WithKubectlURL overrides the kubectl download URL entirely.
// Panics if url is empty.
func WithKubectlURL(url string) Option {
	requireNonEmpty("kubectl download URL", url)
	return func(c *clusterConfig) {
		c.KubectlURL = url
	}
}

// WithKindBinary uses an existing kind binary instead of downloading one.
// Panics if path is empty.
func WithKindBinary(path string) Option {
	requireNonEmpty("kind binary path", path)
	return func(c *clusterConfig) {
		c.KindBinary = path
	}
}

// WithKubectlBinary uses an existing kubectl binary instead of downloading one.
// Panics if path is empty.
func WithKubectlBinary(path string) Option {
	requireNonEmpty("kubectl binary path", path)
	return func(c *clusterConfig) {
		c.KubectlBinary = path
	}
}

// WithCreateAttempts bounds the create-and-repair loop: a cluster that comes
// up without usable credentials is deleted and recreated at most n times in
// total before Create returns ErrCreateRepairExhausted.
//
// Default: DefaultCreateAttempts.
//
// Panics if n <= 0.
func WithCreateAttempts(n int) Option {
	requirePositive("create attempts", n)
	return func(c *clusterConfig) {
		c.CreateAttempts = n
	}
}

// WithCreateTimeout bounds one whole Create call, including binary
// downloads, cluster creation, and the readiness wait. First runs pull the
// node image, so keep this generous.
//
// Default: DefaultCreateTimeout.
//
// Panics if d <= 0.
func WithCreateTimeout(d time.Duration) Option {
	requirePositive("create timeout", d)
	return func(c *clusterConfig) {
		c.CreateTimeout = d
	}
}

// WithReadyTimeout bounds the post-create wait for the API server to answer
// and all nodes to report Ready. Zero disables the wait entirely; Create
// then returns as soon as the credentials file is populated.
//
// Default: DefaultReadyTimeout.
//
// Panics if d < 0.
func WithReadyTimeout(d time.Duration) Option {
	if d < 0 {
		panic(fmt.Sprintf("kindenv: ready timeout must not be negative, got %v", d))
	}
	return func(c *clusterConfig) {
		c.ReadyTimeout = d
	}
}

// WithPortForwardRetries sets the number of port-forward establishment
// attempts before PortForward gives up with ErrPortForwardExhausted.
//
// Default: DefaultPortForwardRetries.
//
// Panics if n <= 0.
func WithPortForwardRetries(n int) Option {
	requirePositive("port-forward retries", n)
	return func(c *clusterConfig) {
		c.ForwardRetries = n
	}
}

// WithPortForwardSettleInterval sets how long each port-forward attempt
// waits after launching the forwarder before health checking it.
//
// Default: DefaultPortForwardSettleInterval.
//
// Panics if d <= 0.
func WithPortForwardSettleInterval(d time.Duration) Option {
	requirePositive("port-forward settle interval", d)
	return func(c *clusterConfig) {
		c.ForwardSettleInterval = d
	}
}

// WithHTTPClient sets the HTTP client used for binary downloads, e.g. to
// route through a proxy or tighten transport timeouts.
// Panics if client is nil.
func WithHTTPClient(client *http.Client) Option {
	if client == nil {
		panic("kindenv: http client must not be nil")
	}
	return func(c *clusterConfig) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger for this cluster, overriding the package-level
// logger configured via SetLogger.
// Panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("kindenv: logger must not be nil")
	}
	return func(c *clusterConfig) {
		c.Logger = l
	}
}
