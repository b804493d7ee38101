package configuration

import "fmt"

func ValidateSwarmbenchConfig(config SwarmbenchConfig) error {
	if config.Cluster.Name == "" {
		return fmt.Errorf("cluster.name must be set")
	}
	if config.Namespaces.JMeter == "" {
		return fmt.Errorf("namespaces.jmeter must be set")
	}
	if config.Cluster.MinNodes < 1 {
		return fmt.Errorf("cluster.minNodes must be at least 1, got %d", config.Cluster.MinNodes)
	}
	if config.Cluster.MaxNodes < config.Cluster.MinNodes {
		return fmt.Errorf(
			"cluster.maxNodes (%d) cannot be lower than cluster.minNodes (%d)",
			config.Cluster.MaxNodes, config.Cluster.MinNodes)
	}
	if config.Cluster.ReadyPollInterval <= 0 {
		return fmt.Errorf("cluster.readyPollInterval must be positive")
	}
	if config.Paths.StatusFile == "" || config.Paths.TriggerFile == "" {
		return fmt.Errorf("paths.statusFile and paths.triggerFile must be set")
	}
	return nil
}
