package kube

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LazyClusterOperations defers Kubernetes client construction until the
// cluster exists. eksctl writes the kubeconfig during cluster creation, so a
// client built at process start would bind to a stale or missing config.
// Construction is retried on every call until it succeeds, then cached.
type LazyClusterOperations struct {
	mutex    sync.Mutex
	delegate ClusterOperations
	factory  func() (ClusterOperations, error)
}

func NewLazyClusterOperations(factory func() (ClusterOperations, error)) *LazyClusterOperations {
	return &LazyClusterOperations{factory: factory}
}

// Reset drops the cached delegate. Called after cluster deletion so a
// recreated cluster gets a client built from the fresh kubeconfig instead of
// one bound to the old API endpoint.
func (l *LazyClusterOperations) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.delegate = nil
}

func (l *LazyClusterOperations) ops() (ClusterOperations, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.delegate != nil {
		return l.delegate, nil
	}
	delegate, err := l.factory()
	if err != nil {
		return nil, errors.Wrap(err, "kubernetes cluster not reachable yet")
	}
	log.Info("Kubernetes client initialised")
	l.delegate = delegate
	return delegate, nil
}

func (l *LazyClusterOperations) EnsureNamespace(ctx context.Context, namespace string) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.EnsureNamespace(ctx, namespace)
}

func (l *LazyClusterOperations) PodName(ctx context.Context, namespace string, selector string) (string, error) {
	ops, err := l.ops()
	if err != nil {
		return "", err
	}
	return ops.PodName(ctx, namespace, selector)
}

func (l *LazyClusterOperations) DeletePodsByLabel(ctx context.Context, namespace string, selector string) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.DeletePodsByLabel(ctx, namespace, selector)
}

func (l *LazyClusterOperations) ScaleStatefulSet(ctx context.Context, namespace string, name string, replicas int32) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.ScaleStatefulSet(ctx, namespace, name, replicas)
}

func (l *LazyClusterOperations) WaitForPodsReady(ctx context.Context, namespace string, podNames []string, timeout time.Duration) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.WaitForPodsReady(ctx, namespace, podNames, timeout)
}

func (l *LazyClusterOperations) ServiceLoadBalancerHostname(ctx context.Context, namespace string, serviceName string) (string, error) {
	ops, err := l.ops()
	if err != nil {
		return "", err
	}
	return ops.ServiceLoadBalancerHostname(ctx, namespace, serviceName)
}

func (l *LazyClusterOperations) ClusterReachable(ctx context.Context) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.ClusterReachable(ctx)
}

func (l *LazyClusterOperations) ExecInPod(ctx context.Context, namespace string, pod string, container string, command string) (string, string, error) {
	ops, err := l.ops()
	if err != nil {
		return "", "", err
	}
	return ops.ExecInPod(ctx, namespace, pod, container, command)
}

func (l *LazyClusterOperations) CopyFromPod(ctx context.Context, namespace string, pod string, container string, remotePath string, localPath string) error {
	ops, err := l.ops()
	if err != nil {
		return err
	}
	return ops.CopyFromPod(ctx, namespace, pod, container, remotePath, localPath)
}
