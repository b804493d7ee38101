package eks

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
)

const eksctlBinary = "eksctl"

// ReadinessChecker reports whether the cluster control plane answers.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

type ReadinessCheckerFunc func(ctx context.Context) error

func (f ReadinessCheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// CreateOptions carries the optional custom node image settings. Both must be
// set for either to take effect.
type CreateOptions struct {
	AMI       string
	AMIFamily string
}

// ClusterDriver provisions and tears down the managed EKS cluster by driving
// the eksctl binary.
type ClusterDriver struct {
	runner    CommandRunner
	readiness ReadinessChecker
	config    configuration.ClusterConfiguration
}

func NewClusterDriver(runner CommandRunner, readiness ReadinessChecker, config configuration.ClusterConfiguration) *ClusterDriver {
	return &ClusterDriver{
		runner:    runner,
		readiness: readiness,
		config:    config,
	}
}

// CreateCluster provisions the cluster and blocks until its API answers.
func (d *ClusterDriver) CreateCluster(ctx context.Context, region string, nodeType string, opts CreateOptions) error {
	args := []string{
		"create", "cluster",
		"--name", d.config.Name,
		"--region", region,
		"--nodegroup-name", d.config.NodegroupName,
		"--node-type", nodeType,
		"--nodes", strconv.Itoa(d.config.MinNodes),
		"--nodes-min", strconv.Itoa(d.config.MinNodes),
		"--nodes-max", strconv.Itoa(d.config.MaxNodes),
		"--managed",
	}
	if opts.AMI != "" && opts.AMIFamily != "" {
		log.Infof("Using custom AMI %s (%s)", opts.AMI, opts.AMIFamily)
		args = append(args, "--node-ami", opts.AMI, "--node-ami-family", opts.AMIFamily)
	}

	if err := d.runner.Run(ctx, eksctlBinary, args...); err != nil {
		return errors.Wrapf(err, "failed to create cluster %s", d.config.Name)
	}

	return d.waitForClusterReady(ctx)
}

// DeleteCluster triggers removal of the cluster and all its resources.
func (d *ClusterDriver) DeleteCluster(ctx context.Context) error {
	log.Infof("Deleting cluster %s", d.config.Name)
	err := d.runner.Run(ctx, eksctlBinary, "delete", "cluster", "--name", d.config.Name, "--force")
	if err != nil {
		return errors.Wrapf(err, "failed to delete cluster %s", d.config.Name)
	}
	log.Info("Cluster deletion started")
	return nil
}

func (d *ClusterDriver) waitForClusterReady(ctx context.Context) error {
	deadline := time.Now().Add(d.config.ReadyTimeout)
	for {
		if err := d.readiness.Check(ctx); err == nil {
			log.Info("Cluster API is ready")
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("timed out waiting for cluster %s to become ready", d.config.Name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.config.ReadyPollInterval):
		}
	}
}
