package kindenv_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/giantswarm/kindenv"
)

func TestOptions(t *testing.T) {
	tests := map[string]struct {
		opt   kindenv.Option
		check func(t *testing.T, cfg kindenv.ConfigSnapshot)
	}{
		"WithBaseDir": {
			opt: kindenv.WithBaseDir("/ci/state"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.BaseDir != "/ci/state" {
					t.Errorf("BaseDir = %q", cfg.BaseDir)
				}
			},
		},
		"WithKubeconfigPath": {
			opt: kindenv.WithKubeconfigPath("/tmp/kc"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KubeconfigPath != "/tmp/kc" {
					t.Errorf("KubeconfigPath = %q", cfg.KubeconfigPath)
				}
			},
		},
		"WithNodeImage": {
			opt: kindenv.WithNodeImage("kindest/node:v1.28.9"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.NodeImage != "kindest/node:v1.28.9" {
					t.Errorf("NodeImage = %q", cfg.NodeImage)
				}
			},
		},
		"WithConfigFile": {
			opt: kindenv.WithConfigFile("kind.yaml"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.ConfigFile != "kind.yaml" {
					t.Errorf("ConfigFile = %q", cfg.ConfigFile)
				}
			},
		},
		"WithKindVersion": {
			opt: kindenv.WithKindVersion("v0.24.0"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KindVersion != "v0.24.0" {
					t.Errorf("KindVersion = %q", cfg.KindVersion)
				}
			},
		},
		"WithKubectlVersion": {
			opt: kindenv.WithKubectlVersion("v1.30.0"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KubectlVersion != "v1.30.0" {
					t.Errorf("KubectlVersion = %q", cfg.KubectlVersion)
				}
			},
		},
		"WithKindURL": {
			opt: kindenv.WithKindURL("https://mirror/kind"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KindURL != "https://mirror/kind" {
					t.Errorf("KindURL = %q", cfg.KindURL)
				}
			},
		},
		"WithKubectlURL": {
			opt: kindenv.WithKubectlURL("https://mirror/kubectl"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KubectlURL != "https://mirror/kubectl" {
					t.Errorf("KubectlURL = %q", cfg.KubectlURL)
				}
			},
		},
		"WithKindBinary": {
			opt: kindenv.WithKindBinary("/usr/local/bin/kind"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KindBinary != "/usr/local/bin/kind" {
					t.Errorf("KindBinary = %q", cfg.KindBinary)
				}
			},
		},
		"WithKubectlBinary": {
			opt: kindenv.WithKubectlBinary("/usr/local/bin/kubectl"),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.KubectlBinary != "/usr/local/bin/kubectl" {
					t.Errorf("KubectlBinary = %q", cfg.KubectlBinary)
				}
			},
		},
		"WithCreateAttempts": {
			opt: kindenv.WithCreateAttempts(5),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.CreateAttempts != 5 {
					t.Errorf("CreateAttempts = %d", cfg.CreateAttempts)
				}
			},
		},
		"WithCreateTimeout": {
			opt: kindenv.WithCreateTimeout(time.Minute),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.CreateTimeout != time.Minute {
					t.Errorf("CreateTimeout = %v", cfg.CreateTimeout)
				}
			},
		},
		"WithReadyTimeout": {
			opt: kindenv.WithReadyTimeout(0),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.ReadyTimeout != 0 {
					t.Errorf("ReadyTimeout = %v, want disabled", cfg.ReadyTimeout)
				}
			},
		},
		"WithPortForwardRetries": {
			opt: kindenv.WithPortForwardRetries(2),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.ForwardRetries != 2 {
					t.Errorf("ForwardRetries = %d", cfg.ForwardRetries)
				}
			},
		},
		"WithPortForwardSettleInterval": {
			opt: kindenv.WithPortForwardSettleInterval(250 * time.Millisecond),
			check: func(t *testing.T, cfg kindenv.ConfigSnapshot) {
				if cfg.ForwardSettleInterval != 250*time.Millisecond {
					t.Errorf("ForwardSettleInterval = %v", cfg.ForwardSettleInterval)
				}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tc.check(t, kindenv.ResolveConfigForTesting("t1", tc.opt))
		})
	}
}

func TestOptions_PanicOnInvalidInput(t *testing.T) {
	tests := map[string]func(){
		"empty base dir":          func() { kindenv.WithBaseDir("") },
		"empty kubeconfig path":   func() { kindenv.WithKubeconfigPath("") },
		"empty node image":        func() { kindenv.WithNodeImage("") },
		"empty config file":       func() { kindenv.WithConfigFile("") },
		"empty kind version":      func() { kindenv.WithKindVersion("") },
		"empty kubectl version":   func() { kindenv.WithKubectlVersion("") },
		"empty kind url":          func() { kindenv.WithKindURL("") },
		"empty kubectl url":       func() { kindenv.WithKubectlURL("") },
		"empty kind binary":       func() { kindenv.WithKindBinary("") },
		"empty kubectl binary":    func() { kindenv.WithKubectlBinary("") },
		"zero create attempts":    func() { kindenv.WithCreateAttempts(0) },
		"zero create timeout":     func() { kindenv.WithCreateTimeout(0) },
		"negative ready timeout":  func() { kindenv.WithReadyTimeout(-time.Second) },
		"zero forward retries":    func() { kindenv.WithPortForwardRetries(0) },
		"zero settle interval":    func() { kindenv.WithPortForwardSettleInterval(0) },
		"nil http client":         func() { kindenv.WithHTTPClient(nil) },
		"nil logger":              func() { kindenv.WithLogger(nil) },
	}

	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic, got none")
				}
			}()
			call()
		})
	}
}

func TestOptions_ValidInputDoesNotPanic(t *testing.T) {
	kindenv.WithHTTPClient(http.DefaultClient)
	kindenv.WithLogger(slog.Default())
}
