package kindenv

import (
	"time"
)

// ConfigSnapshot holds a copy of the resolved configuration for test
// assertions. Exported only via export_test.go so that the _test package can
// verify option closures and environment overrides without accessing
// internals.
type ConfigSnapshot struct {
	Name                  string
	BaseDir               string
	KubeconfigPath        string
	NodeImage             string
	ConfigFile            string
	KindVersion           string
	KubectlVersion        string
	KindURL               string
	KubectlURL            string
	KindBinary            string
	KubectlBinary         string
	CreateAttempts        int
	CreateTimeout         time.Duration
	ReadyTimeout          time.Duration
	ForwardRetries        int
	ForwardSettleInterval time.Duration
}

// ResolveConfigForTesting runs the same default/environment/option layering
// as New and returns a snapshot of the result.
func ResolveConfigForTesting(name string, opts ...Option) ConfigSnapshot {
	cfg := resolveConfig(name, opts...)
	return ConfigSnapshot{
		Name:                  cfg.Name,
		BaseDir:               cfg.BaseDir,
		KubeconfigPath:        cfg.KubeconfigPath,
		NodeImage:             cfg.NodeImage,
		ConfigFile:            cfg.ConfigFile,
		KindVersion:           cfg.KindVersion,
		KubectlVersion:        cfg.KubectlVersion,
		KindURL:               cfg.KindURL,
		KubectlURL:            cfg.KubectlURL,
		KindBinary:            cfg.KindBinary,
		KubectlBinary:         cfg.KubectlBinary,
		CreateAttempts:        cfg.CreateAttempts,
		CreateTimeout:         cfg.CreateTimeout,
		ReadyTimeout:          cfg.ReadyTimeout,
		ForwardRetries:        cfg.ForwardRetries,
		ForwardSettleInterval: cfg.ForwardSettleInterval,
	}
}
