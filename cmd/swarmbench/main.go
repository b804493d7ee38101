package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/swarmbench/swarmbench/internal/common"
	"github.com/swarmbench/swarmbench/internal/common/health"
	"github.com/swarmbench/swarmbench/internal/swarmbench"
	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.SwarmbenchConfig
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/swarmbench", userSpecifiedConfigs)

	if err := configuration.ValidateSwarmbenchConfig(config); err != nil {
		log.Errorf("Invalid configuration: %s", err)
		os.Exit(-1)
	}

	log.Info("Starting...")

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
	defer shutdownMetricServer()

	mux := http.NewServeMux()

	startupComplete := health.NewStartupCompleteChecker()
	health.SetupHttpMux(mux, startupComplete)

	shutdown, wg := swarmbench.StartUp(&config, mux)

	shutdownHttpServer := common.ServeHttp(config.HttpPort, mux)
	defer shutdownHttpServer()

	go func() {
		<-stopSignal
		shutdown()
	}()
	startupComplete.MarkComplete()
	wg.Wait()
}
