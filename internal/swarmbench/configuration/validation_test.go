package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() SwarmbenchConfig {
	return SwarmbenchConfig{
		Cluster: ClusterConfiguration{
			Name:              "jmeter-cluster",
			NodegroupName:     "jmeter-nodes",
			MinNodes:          1,
			MaxNodes:          3,
			ReadyTimeout:      5 * time.Minute,
			ReadyPollInterval: 5 * time.Second,
		},
		Namespaces: NamespacesConfiguration{JMeter: "jmeter", Monitoring: "monitoring"},
		Paths: PathsConfiguration{
			StatusFile:  "/tmp/test_status",
			TriggerFile: "/tmp/run_test",
		},
	}
}

func TestValidateSwarmbenchConfig_ValidConfig(t *testing.T) {
	assert.NoError(t, ValidateSwarmbenchConfig(validConfig()))
}

func TestValidateSwarmbenchConfig_MissingClusterName(t *testing.T) {
	config := validConfig()
	config.Cluster.Name = ""

	assert.Error(t, ValidateSwarmbenchConfig(config))
}

func TestValidateSwarmbenchConfig_MaxNodesBelowMinNodes(t *testing.T) {
	config := validConfig()
	config.Cluster.MinNodes = 3
	config.Cluster.MaxNodes = 1

	assert.Error(t, ValidateSwarmbenchConfig(config))
}

func TestValidateSwarmbenchConfig_MissingStatusFile(t *testing.T) {
	config := validConfig()
	config.Paths.StatusFile = ""

	assert.Error(t, ValidateSwarmbenchConfig(config))
}
