package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
	"github.com/swarmbench/swarmbench/internal/swarmbench/eks"
	"github.com/swarmbench/swarmbench/internal/swarmbench/kube"
	"github.com/swarmbench/swarmbench/internal/swarmbench/manifests"
)

const controllerSelector = domain.AppLabel + "=" + domain.ControllerApp
const workerSelector = domain.AppLabel + "=" + domain.WorkerApp

// ClusterProvisioner creates and deletes the managed cluster.
type ClusterProvisioner interface {
	CreateCluster(ctx context.Context, region string, nodeType string, opts eks.CreateOptions) error
	DeleteCluster(ctx context.Context) error
}

// TopologyDeployer submits the load test topology to the cluster.
type TopologyDeployer interface {
	Apply(ctx context.Context, params manifests.Params) error
}

// Coordinator drives the full lifecycle of a load test: provisioning,
// triggering runs on the controller pod, reading the status marker and
// retrieving result artifacts.
type Coordinator struct {
	provisioner ClusterProvisioner
	deployer    TopologyDeployer
	ops         kube.ClusterOperations
	config      *configuration.SwarmbenchConfig

	sleep func(ctx context.Context, d time.Duration) error
}

func New(
	provisioner ClusterProvisioner,
	deployer TopologyDeployer,
	ops kube.ClusterOperations,
	config *configuration.SwarmbenchConfig,
) *Coordinator {
	return &Coordinator{
		provisioner: provisioner,
		deployer:    deployer,
		ops:         ops,
		config:      config,
		sleep:       sleepWithContext,
	}
}

// ProvisionCluster creates the cluster, ensures the namespaces exist and
// deploys the load test topology parameterised by run.
func (c *Coordinator) ProvisionCluster(ctx context.Context, region string, nodeType string, opts eks.CreateOptions, run domain.RunContext) error {
	if err := c.provisioner.CreateCluster(ctx, region, nodeType, opts); err != nil {
		return err
	}
	clustersCreated.Inc()

	for _, namespace := range []string{c.config.Namespaces.JMeter, c.config.Namespaces.Monitoring} {
		if err := c.ops.EnsureNamespace(ctx, namespace); err != nil {
			return err
		}
	}

	run.Namespace = c.config.Namespaces.JMeter
	return c.deployer.Apply(ctx, manifests.Params{Run: run, Paths: c.config.Paths})
}

// clientResetter is implemented by cluster operations that cache Kubernetes
// clients which must be rebuilt once the cluster they point at is gone.
type clientResetter interface {
	Reset()
}

// TeardownCluster removes the cluster and everything on it. Cached clients
// are dropped so a subsequent recreate connects to the new API endpoint.
func (c *Coordinator) TeardownCluster(ctx context.Context) error {
	if err := c.provisioner.DeleteCluster(ctx); err != nil {
		return err
	}
	clustersDeleted.Inc()
	if resetter, ok := c.ops.(clientResetter); ok {
		resetter.Reset()
		log.Info("Dropped cached kubernetes clients")
	}
	return nil
}

// ResetStatus clears the status marker on the controller pod so a new run
// starts from a clean slate. Missing controller pod is not an error.
func (c *Coordinator) ResetStatus(ctx context.Context) error {
	pod, err := c.controllerPod(ctx)
	if err != nil || pod == "" {
		return err
	}
	_, _, err = c.ops.ExecInPod(ctx, c.config.Namespaces.JMeter, pod, domain.ControllerContainer,
		fmt.Sprintf("rm -f %s", c.config.Paths.StatusFile))
	if err != nil {
		return err
	}
	log.Info("Reset run status on controller pod")
	return nil
}

// StartRun scales the workers to the requested shard count, waits for them
// to become ready and triggers the controller pod.
func (c *Coordinator) StartRun(ctx context.Context, shards int) error {
	if err := c.startRun(ctx, shards); err != nil {
		runsFailed.Inc()
		return err
	}
	runsStarted.Inc()
	return nil
}

func (c *Coordinator) startRun(ctx context.Context, shards int) error {
	if shards < 1 {
		return errors.Errorf("shard count must be at least 1, got %d", shards)
	}
	namespace := c.config.Namespaces.JMeter

	log.Info("Removing stale worker pods")
	if err := c.ops.DeletePodsByLabel(ctx, namespace, workerSelector); err != nil {
		return err
	}

	log.Infof("Scaling workers to %d replicas", shards)
	if err := c.ops.ScaleStatefulSet(ctx, namespace, domain.WorkerStatefulSet, int32(shards)); err != nil {
		return err
	}
	if err := c.ops.WaitForPodsReady(ctx, namespace, workerPodNames(shards), c.config.Run.WorkerReadyTimeout); err != nil {
		return err
	}

	pod, err := c.controllerPod(ctx)
	if err != nil {
		return err
	}
	if pod == "" {
		return errors.New("controller pod not found")
	}

	testplan, _, err := c.ops.ExecInPod(ctx, namespace, pod, domain.ControllerContainer,
		fmt.Sprintf("ls -1 %s/*.jmx 2>/dev/null | head -n 1", c.config.Paths.TestplansDir))
	if err == nil && strings.TrimSpace(testplan) != "" {
		log.Infof("Using testplan %s", strings.TrimSpace(testplan))
	} else {
		log.Warnf("No testplan detected, controller will fall back to %s", c.config.Paths.DefaultTestplan)
	}

	trigger := fmt.Sprintf(
		"echo RUNNING > %s && rm -f %s && touch %s",
		c.config.Paths.StatusFile, c.config.Paths.TriggerFile, c.config.Paths.TriggerFile,
	)
	log.Infof("Triggering controller entrypoint: %s", trigger)
	_, stderr, err := c.ops.ExecInPod(ctx, namespace, pod, domain.ControllerContainer, trigger)
	if err != nil {
		return errors.Wrapf(err, "failed to trigger run on controller pod: %s", stderr)
	}

	log.Info("Run triggered, status set to RUNNING")
	return c.sleep(ctx, c.config.Run.TriggerSettleDelay)
}

// Status reads the status marker from the controller pod. All failure modes
// map to UNKNOWN, per the marker file convention.
func (c *Coordinator) Status(ctx context.Context) domain.RunStatus {
	pod, err := c.controllerPod(ctx)
	if err != nil || pod == "" {
		return domain.RunStatusUnknown
	}

	stdout, _, err := c.ops.ExecInPod(ctx, c.config.Namespaces.JMeter, pod, domain.ControllerContainer,
		fmt.Sprintf("cat %s 2>/dev/null || echo UNKNOWN", c.config.Paths.StatusFile))
	if err != nil {
		return domain.RunStatusUnknown
	}
	return domain.ParseRunStatus(strings.TrimSpace(stdout))
}

// FetchResults copies the newest result artifact out of the controller pod
// and returns its local path.
func (c *Coordinator) FetchResults(ctx context.Context) (string, error) {
	pod, err := c.controllerPod(ctx)
	if err != nil {
		return "", err
	}
	if pod == "" {
		return "", errors.New("controller pod not found")
	}
	namespace := c.config.Namespaces.JMeter

	remote := ""
	for _, dir := range []string{c.config.Paths.ResultsDir, c.config.Paths.TestplansDir} {
		stdout, _, err := c.ops.ExecInPod(ctx, namespace, pod, domain.ControllerContainer,
			fmt.Sprintf("ls -1 %s/*.jtl 2>/dev/null | head -n 1", dir))
		if err != nil {
			continue
		}
		remote = strings.TrimSpace(stdout)
		if remote != "" {
			break
		}
	}
	if remote == "" {
		return "", errors.New("no result artifact found on controller pod, the run may still be in progress")
	}

	localPath := filepath.Join(c.config.Paths.LocalResultsDir, filepath.Base(remote))
	err = c.ops.CopyFromPod(ctx, namespace, pod, domain.ControllerContainer, remote, localPath)
	if err != nil {
		return "", err
	}

	resultsFetched.Inc()
	log.Infof("Downloaded result artifact to %s", localPath)
	return localPath, nil
}

// DashboardURL returns the externally reachable grafana dashboard address.
func (c *Coordinator) DashboardURL(ctx context.Context) (string, error) {
	hostname, err := c.ops.ServiceLoadBalancerHostname(ctx, c.config.Namespaces.Monitoring, c.config.Monitoring.GrafanaService)
	if err != nil {
		return "", err
	}
	if hostname == "" {
		return "", errors.New("grafana not ready yet")
	}
	return fmt.Sprintf("http://%s:%d/d/%s", hostname, c.config.Monitoring.GrafanaPort, c.config.Monitoring.GrafanaDashboard), nil
}

func (c *Coordinator) controllerPod(ctx context.Context) (string, error) {
	return c.ops.PodName(ctx, c.config.Namespaces.JMeter, controllerSelector)
}

func workerPodNames(shards int) []string {
	names := make([]string, 0, shards)
	for i := 0; i < shards; i++ {
		names = append(names, fmt.Sprintf("%s-%d", domain.WorkerStatefulSet, i))
	}
	return names
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
