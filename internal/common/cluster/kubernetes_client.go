package cluster

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/flowcontrol"
)

type KubernetesClientProvider interface {
	Client() kubernetes.Interface
	ClientConfig() *rest.Config
}

type ConfigKubernetesClientProvider struct {
	restConfig *rest.Config
	client     kubernetes.Interface
}

func NewKubernetesClientProvider(qps float32, burst int) (*ConfigKubernetesClientProvider, error) {
	if qps <= 0 {
		return nil, errors.Errorf("qps must be positive, got %v", qps)
	}
	if burst <= 0 {
		return nil, errors.Errorf("burst must be positive, got %d", burst)
	}

	restConfig, err := loadConfig()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Use a shared rate limiter for all clients created by this provider.
	restConfig.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(qps, burst)

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &ConfigKubernetesClientProvider{restConfig: restConfig, client: client}, nil
}

func (c *ConfigKubernetesClientProvider) Client() kubernetes.Interface {
	return c.client
}

func (c *ConfigKubernetesClientProvider) ClientConfig() *rest.Config {
	return c.restConfig
}

func loadConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == rest.ErrNotInCluster {
		log.Info("Running with default client configuration")
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		overrides := &clientcmd.ConfigOverrides{}
		return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	}
	if err == nil {
		log.Info("Running with in cluster client configuration")
	}
	return config, err
}
