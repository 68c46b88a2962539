// Package kindenvtest wires a shared kindenv cluster into a test binary.
// Call Run from TestMain to provision the cluster once for the whole suite,
// and Shared from individual tests to use it:
//
//	func TestMain(m *testing.M) {
//		os.Exit(kindenvtest.Run(m))
//	}
//
//	func TestSomething(t *testing.T) {
//		out, err := kindenvtest.Shared().Kubectl(ctx, "get", "nodes")
//		...
//	}
//
// The cluster name defaults to kindenv.DefaultClusterName and can be changed
// per run with -cluster-name. Setting KINDENV_KEEP_CLUSTER to a non-empty
// value skips teardown so consecutive runs reuse the running cluster.
package kindenvtest

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/giantswarm/kindenv"
)

// clusterName selects the shared cluster's name, so parallel CI jobs on one
// machine can run against separate clusters.
var clusterName = flag.String("cluster-name", kindenv.DefaultClusterName,
	"name of the shared kind cluster provisioned by kindenvtest.Run")

// shared holds the suite's cluster between Run's setup and teardown.
var shared atomic.Pointer[kindenv.Cluster]

// Run provisions the shared cluster, runs the suite, and tears the cluster
// down again. The returned code is meant for os.Exit. A teardown failure
// turns an otherwise green run red.
//
// Setting KINDENV_KEEP_CLUSTER to a non-empty value skips teardown; the next
// Run with the same name reuses the cluster instead of creating it.
func Run(m *testing.M, opts ...kindenv.Option) int {
	if !flag.Parsed() {
		flag.Parse()
	}
	ctx := context.Background()

	cluster, err := kindenv.New(*clusterName, opts...)
	if err != nil {
		slog.Error("kindenvtest: invalid cluster configuration", "error", err)
		return 1
	}

	baseDir := filepath.Dir(cluster.Dir())
	for _, leftover := range leftoverClusters(ctx, baseDir, cluster.Name()) {
		slog.Warn("kindenvtest: leftover cluster from an earlier run",
			"cluster", leftover.Name, "created_at", leftover.CreatedAt,
			"hint", "delete it with: kind delete cluster --name "+leftover.Name)
	}

	if err := cluster.Create(ctx); err != nil {
		slog.Error("kindenvtest: provisioning shared cluster failed",
			"cluster", cluster.Name(), "error", err)
		return 1
	}
	shared.Store(cluster)
	defer shared.Store(nil)

	code := m.Run()

	if keepRequested() {
		slog.Info("kindenvtest: keeping shared cluster",
			"cluster", cluster.Name(), "kubeconfig", cluster.KubeconfigPath())
		return code
	}
	if err := cluster.Delete(ctx); err != nil {
		slog.Error("kindenvtest: deleting shared cluster failed",
			"cluster", cluster.Name(), "error", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// Shared returns the suite's cluster. It panics when called outside the
// window where Run has provisioned it, which always indicates a missing
// kindenvtest.Run in TestMain.
func Shared() *kindenv.Cluster {
	c := shared.Load()
	if c == nil {
		panic("kindenvtest: Shared called before Run provisioned the cluster; call kindenvtest.Run from TestMain")
	}
	return c
}

// keepRequested reports whether the operator asked to skip teardown.
func keepRequested() bool {
	return os.Getenv(kindenv.EnvKeepCluster) != ""
}

// leftoverClusters returns registry entries other than current: clusters a
// crashed or interrupted run never deleted. Registry trouble only costs the
// warning, so errors are swallowed after a debug log.
func leftoverClusters(ctx context.Context, baseDir, current string) []kindenv.ManagedCluster {
	rows, err := kindenv.ListManaged(ctx, baseDir)
	if err != nil {
		slog.Debug("kindenvtest: reading cluster registry failed", "error", err)
		return nil
	}
	var leftovers []kindenv.ManagedCluster
	for _, row := range rows {
		if row.Name != current {
			leftovers = append(leftovers, row)
		}
	}
	return leftovers
}
