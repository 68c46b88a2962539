package kindenv

import (
	"os"

	"github.com/giantswarm/kindenv/internal/core"
)

// defaultClusterConfig returns a clusterConfig populated with all default
// values. Both New and test helpers use this to avoid duplicating the
// default field assignments.
func defaultClusterConfig() clusterConfig {
	return clusterConfig{core.ClusterConfig{
		BaseDir:               DefaultBaseDirName,
		KindVersion:           DefaultKindVersion,
		KubectlVersion:        DefaultKubectlVersion,
		CreateAttempts:        DefaultCreateAttempts,
		CreateTimeout:         DefaultCreateTimeout,
		ReadyTimeout:          DefaultReadyTimeout,
		ForwardRetries:        DefaultPortForwardRetries,
		ForwardSettleInterval: DefaultPortForwardSettleInterval,
	}}
}

// applyEnvOverrides reads the supported environment variables and applies
// them over the defaults. The environment is consulted exactly once, here,
// at construction time; no operation reads it afterwards, so a cluster's
// behavior cannot drift when the test process mutates its environment.
func applyEnvOverrides(cfg *clusterConfig) {
	if v := os.Getenv(EnvKindVersion); v != "" {
		cfg.KindVersion = v
	}
	if v := os.Getenv(EnvKubectlVersion); v != "" {
		cfg.KubectlVersion = v
	}
	if v := os.Getenv(EnvKindURL); v != "" {
		cfg.KindURL = v
	}
	if v := os.Getenv(EnvKubectlURL); v != "" {
		cfg.KubectlURL = v
	}
	if v := os.Getenv(EnvKubeconfig); v != "" {
		cfg.KubeconfigPath = v
	}
}

// resolveConfig layers the three configuration sources in precedence order:
// defaults, then environment variables, then explicit options.
func resolveConfig(name string, opts ...Option) core.ClusterConfig {
	cfg := defaultClusterConfig()
	applyEnvOverrides(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}
	if name == "" {
		name = DefaultClusterName
	}
	cfg.Name = name
	return cfg.ClusterConfig
}
