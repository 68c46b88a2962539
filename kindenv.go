package kindenv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/giantswarm/kindenv/internal/core"
	"github.com/giantswarm/kindenv/internal/forward"
	"github.com/giantswarm/kindenv/internal/registry"
)

// PortForwardSession is a live tunnel returned by PortForward. The caller
// must Close it; Close terminates the background forwarder process
// unconditionally and is idempotent.
type PortForwardSession = forward.Session

// Cluster manages one named kind cluster.
//
// Cluster is not safe for concurrent use; serialize lifecycle calls.
// Separate Cluster values, including ones sharing a base directory, may be
// used concurrently.
type Cluster struct {
	c *core.Cluster
}

// New creates a Cluster handle. No I/O happens here: binaries are
// downloaded and the cluster is created by Create. An empty name selects
// DefaultClusterName.
//
// Configuration is resolved from three sources in precedence order:
// defaults, environment variables (see the Env* constants), and explicit
// options. The environment is read once, inside New.
func New(name string, opts ...Option) (*Cluster, error) {
	inner, err := core.New(resolveConfig(name, opts...))
	if err != nil {
		return nil, err
	}
	return &Cluster{c: inner}, nil
}

// Name returns the cluster name.
func (c *Cluster) Name() string {
	return c.c.Name()
}

// KubeconfigPath returns where the cluster credentials file lives (or will
// live once Create succeeds).
func (c *Cluster) KubeconfigPath() string {
	return c.c.KubeconfigPath()
}

// Dir returns the per-cluster state directory.
func (c *Cluster) Dir() string {
	return c.c.Dir()
}

// Created reports whether Create has succeeded and Delete has not been
// called since.
func (c *Cluster) Created() bool {
	return c.c.Created()
}

// Create makes the cluster exist and ready for use. An existing cluster
// with the same name is reused, so Create is idempotent across test runs. A
// cluster that comes up without usable credentials is deleted and recreated
// up to the configured attempt budget; exhaustion returns
// ErrCreateRepairExhausted.
func (c *Cluster) Create(ctx context.Context) error {
	return c.c.Create(ctx)
}

// Delete removes the cluster, its credentials file, and its registry entry.
// Deleting a cluster that does not exist is a no-op.
func (c *Cluster) Delete(ctx context.Context) error {
	return c.c.Delete(ctx)
}

// Kubectl runs the pinned kubectl binary against the cluster and returns
// captured stdout. Non-zero exits surface as *ExitError in the error chain.
func (c *Cluster) Kubectl(ctx context.Context, args ...string) (string, error) {
	return c.c.Kubectl(ctx, args...)
}

// LoadDockerImage loads an image from the local Docker daemon into the
// cluster nodes, so pods can use it without a registry pull.
func (c *Cluster) LoadDockerImage(ctx context.Context, image string) error {
	return c.c.LoadDockerImage(ctx, image)
}

// LoadImageArchive loads an image tarball (docker save format) into the
// cluster nodes.
func (c *Cluster) LoadImageArchive(ctx context.Context, archive string) error {
	return c.c.LoadImageArchive(ctx, archive)
}

// PortForward opens a tunnel from a random local port to remotePort on
// target (e.g., "service/kube-dns" or a pod name). extraArgs are passed
// through to kubectl, e.g. "-n", "kube-system". ctx bounds establishment
// only; the returned session lives until Close.
//
// Exhausting all attempts returns ErrPortForwardExhausted with the last
// failure in the error chain.
func (c *Cluster) PortForward(ctx context.Context, target string, remotePort int, extraArgs ...string) (*PortForwardSession, error) {
	return c.c.PortForward(ctx, target, 0, remotePort, extraArgs...)
}

// PortForwardTo is PortForward with a fixed local port, held across all
// establishment attempts.
func (c *Cluster) PortForwardTo(ctx context.Context, target string, localPort, remotePort int, extraArgs ...string) (*PortForwardSession, error) {
	if localPort <= 0 {
		return nil, fmt.Errorf("local port must be positive, got %d", localPort)
	}
	return c.c.PortForward(ctx, target, localPort, remotePort, extraArgs...)
}

// RESTConfig builds a client-go rest.Config from the cluster credentials.
func (c *Cluster) RESTConfig() (*rest.Config, error) {
	return c.c.RESTConfig()
}

// Clientset builds a typed client-go clientset for the cluster.
func (c *Cluster) Clientset() (*kubernetes.Clientset, error) {
	return c.c.Clientset()
}

// ManagedCluster is one row of the cluster registry: a cluster that a
// kindenv Create recorded and no Delete has removed yet.
type ManagedCluster struct {
	Name           string
	KindVersion    string
	KubeconfigPath string
	NodeImage      string
	CreatedAt      time.Time
}

// ListManaged returns the clusters recorded in baseDir's registry, oldest
// first. A base directory without a registry yields an empty list. Useful
// for spotting clusters leaked by crashed or interrupted test runs.
func ListManaged(ctx context.Context, baseDir string) ([]ManagedCluster, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDirName
	}
	path := filepath.Join(baseDir, "registry.db")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	reg, err := registry.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open cluster registry: %w", err)
	}
	rows, listErr := reg.List(ctx)
	if err := errors.Join(listErr, reg.Close()); err != nil {
		return nil, fmt.Errorf("list managed clusters: %w", err)
	}

	out := make([]ManagedCluster, 0, len(rows))
	for _, r := range rows {
		out = append(out, ManagedCluster{
			Name:           r.Name,
			KindVersion:    r.KindVersion,
			KubeconfigPath: r.KubeconfigPath,
			NodeImage:      r.NodeImage,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}
