// Package kindenv provisions ephemeral Kubernetes clusters for test suites
// using kind (Kubernetes in Docker). It downloads pinned kind and kubectl
// binaries into a shared cache, creates (or reuses) a named cluster, hands
// out client-go configs and kubectl access, opens port-forward tunnels to
// in-cluster services, and tears everything down again.
//
// Typical use from a TestMain, via the kindenvtest helper:
//
//	func TestMain(m *testing.M) {
//		os.Exit(kindenvtest.Run(m))
//	}
//
//	func TestSomething(t *testing.T) {
//		cluster := kindenvtest.Shared()
//		client, err := cluster.Clientset()
//		...
//	}
//
// Or managed directly:
//
//	cluster, err := kindenv.New("integration")
//	if err != nil { ... }
//	if err := cluster.Create(ctx); err != nil { ... }
//	defer cluster.Delete(ctx)
//
//	out, err := cluster.Kubectl(ctx, "get", "pods", "-A")
//
// Clusters are identified by name and survive process exit: a second run
// with the same name reuses the running cluster instead of creating a new
// one. All state (binaries, credentials, the cluster registry) lives under
// a single base directory, ".kindenv" by default.
//
// A small set of environment variables override the defaults at
// construction time: KIND_VERSION, KUBECTL_VERSION, KIND_DOWNLOAD_URL,
// KUBECTL_DOWNLOAD_URL and KINDENV_KUBECONFIG. Explicit options always win
// over the environment.
package kindenv
