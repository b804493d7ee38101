package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/swarmbench/swarmbench/internal/common/cluster"
)

// ClusterOperations are the cluster primitives the run coordinator is built
// on. Implemented against the Kubernetes API, faked in tests.
type ClusterOperations interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	PodName(ctx context.Context, namespace string, selector string) (string, error)
	DeletePodsByLabel(ctx context.Context, namespace string, selector string) error
	ScaleStatefulSet(ctx context.Context, namespace string, name string, replicas int32) error
	WaitForPodsReady(ctx context.Context, namespace string, podNames []string, timeout time.Duration) error
	ServiceLoadBalancerHostname(ctx context.Context, namespace string, serviceName string) (string, error)
	ClusterReachable(ctx context.Context) error

	PodCommandRunner
}

// PodCommandRunner executes commands inside pods and streams files out.
type PodCommandRunner interface {
	ExecInPod(ctx context.Context, namespace string, pod string, container string, command string) (stdout string, stderr string, err error)
	CopyFromPod(ctx context.Context, namespace string, pod string, container string, remotePath string, localPath string) error
}

const podReadyPollInterval = 2 * time.Second

type KubernetesClusterOperations struct {
	client kubernetes.Interface
	PodCommandRunner
}

func NewClusterOperations(provider cluster.KubernetesClientProvider) *KubernetesClusterOperations {
	return &KubernetesClusterOperations{
		client:           provider.Client(),
		PodCommandRunner: NewSpdyPodCommandRunner(provider),
	}
}

func (ops *KubernetesClusterOperations) EnsureNamespace(ctx context.Context, namespace string) error {
	_, err := ops.client.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err == nil {
		log.Infof("Namespace %s already exists", namespace)
		return nil
	}
	if !k8s_errors.IsNotFound(err) {
		return errors.Wrapf(err, "failed to look up namespace %s", namespace)
	}

	log.Infof("Creating namespace %s", namespace)
	_, err = ops.client.CoreV1().Namespaces().Create(ctx, &v1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: namespace},
	}, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to create namespace %s", namespace)
}

// PodName returns the name of the first pod matching selector, or an empty
// string when there is none.
func (ops *KubernetesClusterOperations) PodName(ctx context.Context, namespace string, selector string) (string, error) {
	pods, err := ops.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", errors.Wrapf(err, "failed to list pods matching %s", selector)
	}
	if len(pods.Items) == 0 {
		return "", nil
	}
	return pods.Items[0].Name, nil
}

func (ops *KubernetesClusterOperations) DeletePodsByLabel(ctx context.Context, namespace string, selector string) error {
	err := ops.client.CoreV1().Pods(namespace).DeleteCollection(ctx, metav1.DeleteOptions{}, metav1.ListOptions{LabelSelector: selector})
	return errors.Wrapf(err, "failed to delete pods matching %s", selector)
}

func (ops *KubernetesClusterOperations) ScaleStatefulSet(ctx context.Context, namespace string, name string, replicas int32) error {
	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))
	_, err := ops.client.AppsV1().StatefulSets(namespace).
		Patch(ctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	return errors.Wrapf(err, "failed to scale statefulset %s to %d replicas", name, replicas)
}

// WaitForPodsReady polls until every named pod reports the Ready condition,
// or the timeout expires.
func (ops *KubernetesClusterOperations) WaitForPodsReady(ctx context.Context, namespace string, podNames []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, podName := range podNames {
		log.Infof("Waiting for pod %s to become ready", podName)
		for {
			pod, err := ops.client.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
			if err == nil && isPodReady(pod) {
				log.Infof("Pod %s is ready", podName)
				break
			}
			if time.Now().After(deadline) {
				return errors.Errorf("timed out waiting for pod %s to become ready", podName)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(podReadyPollInterval):
			}
		}
	}
	return nil
}

func (ops *KubernetesClusterOperations) ServiceLoadBalancerHostname(ctx context.Context, namespace string, serviceName string) (string, error) {
	service, err := ops.client.CoreV1().Services(namespace).Get(ctx, serviceName, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get service %s", serviceName)
	}
	ingress := service.Status.LoadBalancer.Ingress
	if len(ingress) == 0 || ingress[0].Hostname == "" {
		return "", nil
	}
	return ingress[0].Hostname, nil
}

// ClusterReachable reports whether the cluster API answers a node listing.
func (ops *KubernetesClusterOperations) ClusterReachable(ctx context.Context) error {
	_, err := ops.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	return err
}

func isPodReady(pod *v1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == v1.PodReady {
			return condition.Status == v1.ConditionTrue
		}
	}
	return false
}
