package configuration

import "time"

type ClusterConfiguration struct {
	// Name of the EKS cluster managed by this instance.
	Name          string
	NodegroupName string
	MinNodes      int
	MaxNodes      int
	// How long to wait for the cluster API to answer after eksctl returns.
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
}

type NamespacesConfiguration struct {
	JMeter     string
	Monitoring string
}

type KubernetesConfiguration struct {
	QPS   float32
	Burst int
}

type PathsConfiguration struct {
	// Status marker file written by the controller pod's entrypoint.
	StatusFile string
	// Trigger file whose creation starts a run inside the controller pod.
	TriggerFile     string
	TestplansDir    string
	ResultsDir      string
	DefaultTestplan string
	// Local directory result artifacts are copied into.
	LocalResultsDir string
}

type RunConfiguration struct {
	WorkerReadyTimeout time.Duration
	// Delay after triggering the controller pod, giving its entrypoint time
	// to pick up the trigger file before the request returns.
	TriggerSettleDelay time.Duration
}

type TaskConfiguration struct {
	StatusMonitorInterval time.Duration
}

type MonitoringConfiguration struct {
	Enabled          bool
	GrafanaService   string
	GrafanaPort      int
	GrafanaDashboard string
}

type SwarmbenchConfig struct {
	HttpPort    uint16
	MetricsPort uint16

	CorsAllowedOrigins []string
	// Directory the static UI is served from.
	UIPath string

	Cluster    ClusterConfiguration
	Namespaces NamespacesConfiguration
	Kubernetes KubernetesConfiguration
	Paths      PathsConfiguration
	Run        RunConfiguration
	Task       TaskConfiguration
	Monitoring MonitoringConfiguration
}
