package kindenv

import "time"

// Default configuration values for New.
// These constants are exported so callers can reference the defaults when
// building custom configurations relative to them (e.g.,
// 2 * DefaultCreateTimeout).
const (
	// DefaultClusterName is used when New is called with an empty name.
	DefaultClusterName = "kindenv"

	// DefaultBaseDirName is the directory, relative to the working
	// directory, holding all kindenv state: the binary cache, the cluster
	// registry, and the per-cluster directories. Keeping it under the
	// project tree makes the cache survive between test runs and easy to
	// remove wholesale.
	DefaultBaseDirName = ".kindenv"

	// DefaultKindVersion is the kind release downloaded when no version is
	// configured.
	DefaultKindVersion = "v0.23.0"

	// DefaultKubectlVersion is the kubectl release downloaded when no
	// version is configured.
	DefaultKubectlVersion = "v1.28.9"

	// DefaultCreateAttempts bounds the create-and-repair loop: a cluster
	// that comes up without usable credentials is deleted and recreated at
	// most this many times in total.
	DefaultCreateAttempts = 3

	// DefaultCreateTimeout bounds one whole Create call, including binary
	// downloads, cluster creation, and the readiness wait. First runs pull
	// the node image, which dominates this budget.
	DefaultCreateTimeout = 10 * time.Minute

	// DefaultReadyTimeout bounds the post-create wait for the API server to
	// answer and all nodes to report Ready.
	DefaultReadyTimeout = 5 * time.Minute

	// DefaultPortForwardRetries is the number of port-forward establishment
	// attempts before giving up.
	DefaultPortForwardRetries = 10

	// DefaultPortForwardSettleInterval is how long each port-forward attempt
	// waits after launching the forwarder before health checking it.
	DefaultPortForwardSettleInterval = time.Second
)

// Environment variables read once by New. Explicit options always override
// them; operations never consult the environment after construction.
const (
	// EnvKindVersion overrides the kind release to download.
	EnvKindVersion = "KIND_VERSION"

	// EnvKubectlVersion overrides the kubectl release to download.
	EnvKubectlVersion = "KUBECTL_VERSION"

	// EnvKindURL overrides the kind download URL entirely, e.g. to point at
	// an internal mirror.
	EnvKindURL = "KIND_DOWNLOAD_URL"

	// EnvKubectlURL overrides the kubectl download URL entirely.
	EnvKubectlURL = "KUBECTL_DOWNLOAD_URL"

	// EnvKubeconfig overrides where the cluster credentials file is written.
	EnvKubeconfig = "KINDENV_KUBECONFIG"

	// EnvKeepCluster, when set to a non-empty value, makes kindenvtest.Run
	// keep the shared cluster alive after the test binary exits, so
	// consecutive runs reuse it.
	EnvKeepCluster = "KINDENV_KEEP_CLUSTER"
)
