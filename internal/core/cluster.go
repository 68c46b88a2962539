package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/giantswarm/kindenv/internal/download"
	"github.com/giantswarm/kindenv/internal/fileutil"
	"github.com/giantswarm/kindenv/internal/forward"
	"github.com/giantswarm/kindenv/internal/netutil"
	"github.com/giantswarm/kindenv/internal/proc"
	"github.com/giantswarm/kindenv/internal/registry"
	"github.com/giantswarm/kindenv/internal/runner"
	"github.com/giantswarm/kindenv/internal/sentinel"
)

// ErrNotCreated is returned by operations that need a running cluster when
// Create has not succeeded yet (or the cluster has been deleted).
const ErrNotCreated = sentinel.Error("cluster has not been created")

// ErrCreateRepairExhausted is returned when every create attempt produced a
// cluster whose credentials file stayed unpopulated, so each attempt deleted
// the broken cluster and retried until the attempt budget ran out.
const ErrCreateRepairExhausted = sentinel.Error("cluster create repair attempts exhausted")

const (
	// binDirName is the binary cache directory under BaseDir. It is shared
	// across clusters: binaries are versioned, not per-cluster.
	binDirName = "bin"
	// registryFileName is the SQLite cluster registry under BaseDir.
	registryFileName = "registry.db"
	// kubeconfigFileName is the default credentials file name inside the
	// per-cluster directory.
	kubeconfigFileName = "kubeconfig"

	// kubeconfigMode keeps cluster credentials out of reach of other users.
	// The file is created with this mode before the CLI writes into it.
	kubeconfigMode = os.FileMode(0o600)

	// readyPollInterval is the poll cadence of the post-create readiness wait.
	readyPollInterval = 500 * time.Millisecond
)

// Cluster manages one named kind cluster on the local Docker daemon.
//
// Cluster is not safe for concurrent use. Callers must serialize lifecycle
// calls; concurrent use of separate Cluster values (even for the same
// BaseDir) is fine, since the binary cache and the registry coordinate via
// file locks and SQLite respectively.
type Cluster struct {
	// Immutable after New.
	config     ClusterConfig
	log        *slog.Logger
	dir        string // per-cluster state directory: <BaseDir>/<Name>
	kubeconfig string
	store      *download.Store
	ports      *netutil.PortRegistry

	// Set by ensureBinaries on first use.
	kindBin    string
	kubectlBin string
	kind       *runner.Runner
	kubectl    *runner.Runner

	// Set by Create, cleared by Delete.
	created bool
}

// New creates a Cluster from cfg. It performs no I/O: paths are derived, the
// configuration is validated, and nothing touches the filesystem or the
// network until Create.
func New(cfg ClusterConfig) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	log = log.With("cluster", cfg.Name)

	dir := filepath.Join(cfg.BaseDir, cfg.Name)
	kubeconfig := cfg.KubeconfigPath
	if kubeconfig == "" {
		kubeconfig = filepath.Join(dir, kubeconfigFileName)
	}

	return &Cluster{
		config:     cfg,
		log:        log,
		dir:        dir,
		kubeconfig: kubeconfig,
		store:      download.NewStore(filepath.Join(cfg.BaseDir, binDirName), cfg.HTTPClient, log),
		ports:      netutil.NewPortRegistry(log),
	}, nil
}

// Name returns the cluster name.
func (c *Cluster) Name() string {
	return c.config.Name
}

// Dir returns the per-cluster state directory.
func (c *Cluster) Dir() string {
	return c.dir
}

// KubeconfigPath returns where the cluster credentials file lives (or will
// live once Create succeeds).
func (c *Cluster) KubeconfigPath() string {
	return c.kubeconfig
}

// Created reports whether Create has succeeded and Delete has not been
// called since.
func (c *Cluster) Created() bool {
	return c.created
}

// Create makes the named cluster exist and ready for use. An existing
// cluster with the same name is reused, not recreated, so Create is
// idempotent across test runs and even across processes.
//
// The sequence: provision the kind and kubectl binaries (parallel, cached),
// pre-create the credentials file with tight permissions, check for an
// existing cluster, then run the bounded create-and-repair loop. A cluster
// whose credentials file stays unpopulated after creation is assumed broken,
// deleted, and recreated; CreateAttempts bounds the total number of attempts
// and exhaustion returns ErrCreateRepairExhausted. On success the cluster is
// recorded in the registry and, unless ReadyTimeout is zero, Create waits
// for the API server to answer and every node to report Ready.
func (c *Cluster) Create(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.CreateTimeout)
	defer cancel()

	start := time.Now()
	c.log.Debug("creating cluster")

	if err := c.ensureBinaries(ctx); err != nil {
		return err
	}

	if err := fileutil.EnsureDir(c.dir); err != nil {
		return fmt.Errorf("create cluster dir: %w", err)
	}
	if err := fileutil.EnsureDirForFile(c.kubeconfig); err != nil {
		return fmt.Errorf("create kubeconfig dir: %w", err)
	}
	// The CLI writes credentials into an already-existing file, so the tight
	// mode is in place before any secret material lands in it.
	if err := fileutil.Touch(c.kubeconfig, kubeconfigMode); err != nil {
		return fmt.Errorf("create kubeconfig file: %w", err)
	}

	exists, err := c.clusterExists(ctx)
	if err != nil {
		return fmt.Errorf("list clusters: %w", err)
	}
	if exists {
		c.log.Debug("cluster already exists, reusing")
	}

	if err := c.createWithRepair(ctx, exists); err != nil {
		return err
	}

	if err := c.recordCluster(ctx); err != nil {
		return err
	}

	if c.config.ReadyTimeout > 0 {
		if err := c.waitReady(ctx); err != nil {
			return err
		}
	}

	c.created = true
	c.log.Info("cluster ready", "kubeconfig", c.kubeconfig, "elapsed", time.Since(start))
	return nil
}

// createWithRepair runs the bounded create-and-repair loop. exists reports
// whether the cluster was already present before the loop started.
func (c *Cluster) createWithRepair(ctx context.Context, exists bool) error {
	for attempt := 1; ; attempt++ {
		if !exists {
			if err := c.runCreate(ctx); err != nil {
				return fmt.Errorf("create cluster %q: %w", c.config.Name, err)
			}
			exists = true
		}

		populated, err := c.kubeconfigPopulated()
		if err != nil {
			return err
		}
		if populated {
			return nil
		}

		if attempt >= c.config.CreateAttempts {
			return fmt.Errorf("create cluster %q: credentials file %s still empty after %d attempts: %w",
				c.config.Name, c.kubeconfig, attempt, ErrCreateRepairExhausted)
		}

		c.log.Warn("cluster exists but credentials file is empty, recreating",
			"attempt", attempt, "kubeconfig", c.kubeconfig)
		if err := c.runDelete(ctx); err != nil {
			return fmt.Errorf("delete broken cluster %q: %w", c.config.Name, err)
		}
		exists = false
	}
}

// Delete removes the cluster, its credentials file, and its registry row.
// Deleting a cluster that does not exist is a no-op at the CLI level, so
// Delete is idempotent.
func (c *Cluster) Delete(ctx context.Context) error {
	if err := c.ensureBinaries(ctx); err != nil {
		return err
	}

	c.log.Debug("deleting cluster")
	if err := c.runDelete(ctx); err != nil {
		return fmt.Errorf("delete cluster %q: %w", c.config.Name, err)
	}
	if err := os.Remove(c.kubeconfig); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove kubeconfig: %w", err)
	}

	reg, err := registry.Open(c.registryPath(), c.log)
	if err != nil {
		return fmt.Errorf("open cluster registry: %w", err)
	}
	removeErr := reg.Remove(ctx, c.config.Name)
	if err := errors.Join(removeErr, reg.Close()); err != nil {
		return fmt.Errorf("deregister cluster: %w", err)
	}

	c.created = false
	c.log.Info("cluster deleted")
	return nil
}

// Kubectl runs the cluster's kubectl binary with the cluster credentials
// injected and returns captured stdout. Non-zero exits surface as
// *runner.ExitError. Returns ErrNotCreated before Create has succeeded.
func (c *Cluster) Kubectl(ctx context.Context, args ...string) (string, error) {
	if !c.created {
		return "", ErrNotCreated
	}
	return c.kubectl.Run(ctx, args...)
}

// LoadDockerImage loads an image from the local Docker daemon into the
// cluster nodes, so pods can use it without a registry pull.
func (c *Cluster) LoadDockerImage(ctx context.Context, image string) error {
	if !c.created {
		return ErrNotCreated
	}
	if image == "" {
		return errors.New("image must not be empty")
	}
	if _, err := c.kind.Run(ctx, "load", "docker-image", "--name", c.config.Name, image); err != nil {
		return fmt.Errorf("load docker image %q: %w", image, err)
	}
	return nil
}

// LoadImageArchive loads an image tarball into the cluster nodes.
func (c *Cluster) LoadImageArchive(ctx context.Context, archive string) error {
	if !c.created {
		return ErrNotCreated
	}
	if archive == "" {
		return errors.New("archive path must not be empty")
	}
	if _, err := c.kind.Run(ctx, "load", "image-archive", "--name", c.config.Name, archive); err != nil {
		return fmt.Errorf("load image archive %q: %w", archive, err)
	}
	return nil
}

// PortForward opens a tunnel from a local port to remotePort on target
// (e.g., "service/kube-dns"). localPort zero picks a random local port per
// attempt; extraArgs are passed through to the CLI (e.g., "-n",
// "kube-system"). The caller must Close the returned session.
func (c *Cluster) PortForward(ctx context.Context, target string, localPort, remotePort int, extraArgs ...string) (*forward.Session, error) {
	if !c.created {
		return nil, ErrNotCreated
	}
	return forward.Open(ctx, forward.Config{
		Target:         target,
		RemotePort:     remotePort,
		ExtraArgs:      extraArgs,
		LocalPort:      localPort,
		Retries:        c.config.ForwardRetries,
		SettleInterval: c.config.ForwardSettleInterval,
		DataDir:        c.dir,
		Runner:         c.kubectl,
		Ports:          c.ports,
		Logger:         c.log,
	})
}

// RESTConfig builds a client-go rest.Config from the cluster credentials.
func (c *Cluster) RESTConfig() (*rest.Config, error) {
	if !c.created {
		return nil, ErrNotCreated
	}
	return c.restConfig()
}

// Clientset builds a typed client-go clientset for the cluster.
func (c *Cluster) Clientset() (*kubernetes.Clientset, error) {
	if !c.created {
		return nil, ErrNotCreated
	}
	return c.clientset()
}

func (c *Cluster) restConfig() (*rest.Config, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", c.kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("build rest config from %s: %w", c.kubeconfig, err)
	}
	return cfg, nil
}

func (c *Cluster) clientset() (*kubernetes.Clientset, error) {
	cfg, err := c.restConfig()
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}
	return client, nil
}

// ensureBinaries provisions the kind and kubectl binaries into the shared
// version-addressed cache, downloading both in parallel on first use.
// Explicit binary paths in the config skip the download. Idempotent and
// cheap after the first call.
func (c *Cluster) ensureBinaries(ctx context.Context) error {
	if c.kind != nil && c.kubectl != nil {
		return nil
	}

	kindBin := c.config.KindBinary
	kubectlBin := c.config.KubectlBinary

	g, gCtx := errgroup.WithContext(ctx)
	if kindBin == "" {
		g.Go(func() error {
			var err error
			kindBin, err = c.store.Ensure(gCtx, c.kindRef(), c.kindURL())
			if err != nil {
				return fmt.Errorf("ensure kind binary: %w", err)
			}
			return nil
		})
	}
	if kubectlBin == "" {
		g.Go(func() error {
			var err error
			kubectlBin, err = c.store.Ensure(gCtx, c.kubectlRef(), c.kubectlURL())
			if err != nil {
				return fmt.Errorf("ensure kubectl binary: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	kindRunner, err := runner.New(kindBin, c.kubeconfig, c.log)
	if err != nil {
		return fmt.Errorf("create kind runner: %w", err)
	}
	kubectlRunner, err := runner.New(kubectlBin, c.kubeconfig, c.log)
	if err != nil {
		return fmt.Errorf("create kubectl runner: %w", err)
	}

	c.kindBin = kindBin
	c.kubectlBin = kubectlBin
	c.kind = kindRunner
	c.kubectl = kubectlRunner
	return nil
}

func (c *Cluster) kindRef() download.Ref {
	return download.Ref{
		Tool:     "kind",
		Version:  c.config.KindVersion,
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

func (c *Cluster) kubectlRef() download.Ref {
	return download.Ref{
		Tool:     "kubectl",
		Version:  c.config.KubectlVersion,
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		// Windows refuses to execute the binary without the suffix.
		ExeSuffix: runtime.GOOS == "windows",
	}
}

func (c *Cluster) kindURL() string {
	if c.config.KindURL != "" {
		return c.config.KindURL
	}
	return fmt.Sprintf("https://github.com/kubernetes-sigs/kind/releases/download/%s/kind-%s-%s",
		c.config.KindVersion, runtime.GOOS, runtime.GOARCH)
}

func (c *Cluster) kubectlURL() string {
	if c.config.KubectlURL != "" {
		return c.config.KubectlURL
	}
	url := fmt.Sprintf("https://dl.k8s.io/release/%s/bin/%s/%s/kubectl",
		c.config.KubectlVersion, runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		url += ".exe"
	}
	return url
}

// clusterExists asks the CLI for the list of clusters and looks for an exact
// name match.
func (c *Cluster) clusterExists(ctx context.Context) (bool, error) {
	out, err := c.kind.Run(ctx, "get", "clusters")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == c.config.Name {
			return true, nil
		}
	}
	return false, nil
}

func (c *Cluster) runCreate(ctx context.Context) error {
	args := []string{"create", "cluster", "--name", c.config.Name, "--kubeconfig", c.kubeconfig}
	if c.config.NodeImage != "" {
		args = append(args, "--image", c.config.NodeImage)
	}
	if c.config.ConfigFile != "" {
		args = append(args, "--config", c.config.ConfigFile)
	}
	_, err := c.kind.Run(ctx, args...)
	return err
}

func (c *Cluster) runDelete(ctx context.Context) error {
	_, err := c.kind.Run(ctx, "delete", "cluster", "--name", c.config.Name)
	return err
}

// kubeconfigPopulated reports whether the credentials file has content. The
// file is pre-created empty by Create, so a zero size means the CLI never
// wrote credentials into it.
func (c *Cluster) kubeconfigPopulated() (bool, error) {
	info, err := os.Stat(c.kubeconfig)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat kubeconfig: %w", err)
	}
	return info.Size() > 0, nil
}

func (c *Cluster) registryPath() string {
	return filepath.Join(c.config.BaseDir, registryFileName)
}

// recordCluster upserts the cluster's registry row so leftover clusters can
// be found (and warned about) by later runs.
func (c *Cluster) recordCluster(ctx context.Context) error {
	reg, err := registry.Open(c.registryPath(), c.log)
	if err != nil {
		return fmt.Errorf("open cluster registry: %w", err)
	}
	recordErr := reg.Record(ctx, registry.Cluster{
		Name:           c.config.Name,
		KindVersion:    c.config.KindVersion,
		KubeconfigPath: c.kubeconfig,
		NodeImage:      c.config.NodeImage,
	})
	if err := errors.Join(recordErr, reg.Close()); err != nil {
		return fmt.Errorf("register cluster: %w", err)
	}
	return nil
}

// waitReady polls the cluster until the API server answers a version request
// and every node reports the Ready condition, or ReadyTimeout elapses.
func (c *Cluster) waitReady(ctx context.Context) error {
	client, err := c.clientset()
	if err != nil {
		return err
	}

	cfg := proc.WaitReadyConfig{
		Interval: readyPollInterval,
		Timeout:  c.config.ReadyTimeout,
		Name:     "cluster " + c.config.Name,
		Logger:   c.log,
	}
	return proc.WaitReady(ctx, cfg, func(ctx context.Context, _ int) (bool, error) {
		if _, err := client.Discovery().ServerVersion(); err != nil {
			c.log.Debug("api server not answering yet", "error", err)
			return false, nil
		}
		nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		if err != nil {
			c.log.Debug("listing nodes failed", "error", err)
			return false, nil
		}
		if len(nodes.Items) == 0 {
			return false, nil
		}
		for i := range nodes.Items {
			if !nodeReady(&nodes.Items[i]) {
				return false, nil
			}
		}
		return true, nil
	})
}

// nodeReady reports whether the node carries the Ready condition with status
// True.
func nodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
