package swarmbench

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/swarmbench/swarmbench/internal/common/cluster"
	"github.com/swarmbench/swarmbench/internal/common/task"
	"github.com/swarmbench/swarmbench/internal/swarmbench/cloudinfo"
	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
	"github.com/swarmbench/swarmbench/internal/swarmbench/coordinator"
	"github.com/swarmbench/swarmbench/internal/swarmbench/eks"
	"github.com/swarmbench/swarmbench/internal/swarmbench/kube"
	"github.com/swarmbench/swarmbench/internal/swarmbench/manifests"
	"github.com/swarmbench/swarmbench/internal/swarmbench/metrics"
	"github.com/swarmbench/swarmbench/internal/swarmbench/server"
)

// StartUp wires the application together and mounts the API onto mux.
// The Kubernetes client is constructed lazily because the kubeconfig this
// process uses is only written once eksctl has created the cluster.
func StartUp(config *configuration.SwarmbenchConfig, mux *http.ServeMux) (func(), *sync.WaitGroup) {
	wg := &sync.WaitGroup{}
	wg.Add(1)

	clients := &clientProviderCache{config: config.Kubernetes}

	lazyOps := kube.NewLazyClusterOperations(func() (kube.ClusterOperations, error) {
		provider, err := clients.get()
		if err != nil {
			return nil, err
		}
		return kube.NewClusterOperations(provider), nil
	})
	ops := &resettableOperations{LazyClusterOperations: lazyOps, clients: clients}

	driver := eks.NewClusterDriver(
		eks.NewExecCommandRunner(),
		eks.ReadinessCheckerFunc(ops.ClusterReachable),
		config.Cluster,
	)

	deployer := &lazyDeployer{clients: clients, config: config}
	runCoordinator := coordinator.New(driver, deployer, ops, config)

	taskManager := task.NewBackgroundTaskManager(metrics.Prefix)
	monitor := coordinator.NewStatusMonitor(runCoordinator)
	taskManager.Register(monitor.Sample, config.Task.StatusMonitorInterval, "status_monitor")

	api := server.NewServer(cloudinfo.NewService(), runCoordinator, config)
	mux.Handle("/", api.Handler())

	return func() {
		taskManager.StopAll(2 * time.Second)
		wg.Done()
	}, wg
}

// clientProviderCache builds the client provider on first use and shares it
// between the cluster operations and the manifest deployer.
type clientProviderCache struct {
	config configuration.KubernetesConfiguration

	mutex    sync.Mutex
	provider cluster.KubernetesClientProvider
}

func (c *clientProviderCache) get() (cluster.KubernetesClientProvider, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.provider != nil {
		return c.provider, nil
	}
	provider, err := cluster.NewKubernetesClientProvider(c.config.QPS, c.config.Burst)
	if err != nil {
		return nil, err
	}
	c.provider = provider
	return provider, nil
}

func (c *clientProviderCache) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.provider = nil
}

// resettableOperations clears both client caches in one step, so after
// cluster deletion the operations and the manifest deployer reconnect using
// the kubeconfig eksctl writes for the next cluster.
type resettableOperations struct {
	*kube.LazyClusterOperations
	clients *clientProviderCache
}

func (r *resettableOperations) Reset() {
	r.clients.reset()
	r.LazyClusterOperations.Reset()
}

type lazyDeployer struct {
	clients *clientProviderCache
	config  *configuration.SwarmbenchConfig
}

func (d *lazyDeployer) Apply(ctx context.Context, params manifests.Params) error {
	provider, err := d.clients.get()
	if err != nil {
		return err
	}
	deployer := manifests.NewDeployer(provider.Client(), d.config.Namespaces, d.config.Monitoring)
	return deployer.Apply(ctx, params)
}
