package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brokerd/config"
	"brokerd/internal/broker"
	"brokerd/internal/broker/mqtt"
	"brokerd/internal/broker/nats"
	"brokerd/internal/logger"
	"brokerd/internal/metrics"
	"brokerd/internal/report"
	"brokerd/internal/stats"
)

const (
	release            = "brokerd@dev"
	shutdownTimeout    = 10 * time.Second
	probeTimeout       = 5 * time.Second
	reportFlushTimeout = 2 * time.Second
)

// cliFlags holds the command line; override pointers stay nil when the flag was not given
type cliFlags struct {
	configPath   string
	envPath      string
	banner       bool
	brokerURL    *string
	federatedURL *string
	home         *string
}

func parseFlags() cliFlags {
	configPath := flag.String("config", "config/config.yaml", "path to config file (yaml or json)")
	envPath := flag.String("env", ".env", "path to an optional dotenv file")
	banner := flag.Bool("banner", false, "print the startup banner")
	brokerURL := flag.String("broker-url", "", "override broker.url")
	federatedURL := flag.String("federated-url", "", "override federated.broker.url (empty disables federation)")
	home := flag.String("home", "", "override runtime.home")

	flag.Parse()

	f := cliFlags{
		configPath: *configPath,
		envPath:    *envPath,
		banner:     *banner,
	}
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "broker-url":
			f.brokerURL = brokerURL
		case "federated-url":
			f.federatedURL = federatedURL
		case "home":
			f.home = home
		}
	})
	return f
}

// loadConfig resolves file, environment and flag settings in that order
func loadConfig(f cliFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	overrides, err := config.LoadEnv(f.envPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(overrides); err != nil {
		return nil, err
	}

	cfg.ApplyOverrides(f.brokerURL, f.federatedURL, f.home)
	return cfg, nil
}

func main() {
	flags := parseFlags()

	cfg, err := loadConfig(flags)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if flags.banner {
		printBanner(cfg)
	}

	reporter, err := report.New(cfg.Reporting, release)
	if err != nil {
		logger.Fatal("failed to initialize error reporting", "error", err)
	}
	defer reporter.Flush(reportFlushTimeout)

	statsCollector := stats.NewStatsCollector()

	var metricsService *metrics.Metrics
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}
	}

	engineCfg := nats.EngineConfig{
		ServerName: cfg.Broker.ServerName,
		Debug:      cfg.Logging.Level == "debug",
	}

	natsProbe := nats.NewProbe(logger, probeTimeout)
	supervisor := broker.NewSupervisor(
		nats.NewEngineFactory(logger, engineCfg),
		logger,
		broker.WithMetrics(metricsService),
		broker.WithStats(statsCollector),
		broker.WithReporter(reporter),
		broker.WithStartTimeout(cfg.Broker.StartTimeoutDuration()),
		broker.WithStopTimeout(cfg.Broker.StopTimeoutDuration()),
		broker.WithFederationRequired(cfg.Broker.FederationRequired),
		broker.WithConnectorVerification(cfg.Broker.VerifyConnectors),
		broker.WithProbe("tcp", natsProbe),
		broker.WithProbe("nats", natsProbe),
		broker.WithProbe("mqtt", mqtt.NewProbe(logger, probeTimeout)),
	)

	// Setup metrics HTTP server
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector := metrics.NewMetricsCollector(metricsService, supervisor, updateInterval)
		metricsCollector.Start()
		defer metricsCollector.Stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))
		mux.Handle("/status", statusHandler(supervisor, statsCollector))

		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	brokerCfg, err := startBroker(context.Background(), supervisor, cfg, reporter)
	if err != nil {
		logger.Fatal("failed to activate broker", "error", err)
	}

	logger.Info("brokerd started",
		"brokerUrl", brokerCfg.LocalConnectorURL,
		"federatedBrokerUrl", brokerCfg.FederatedBrokerURL,
		"dataDirectory", brokerCfg.DataDirectory,
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reload(supervisor, flags, logger)
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			if err := supervisor.Deactivate(shutdownCtx); err != nil {
				logger.Error("broker did not stop cleanly", "error", err)
			}

			if metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
			}
			return
		}
	}
}

// startBroker performs the initial activation. Failure reports are flushed
// before returning since the caller exits the process on error.
func startBroker(ctx context.Context, supervisor *broker.Supervisor, cfg *config.Config, reporter report.Reporter) (broker.BrokerConfig, error) {
	brokerCfg, err := broker.NewBrokerConfig(cfg.Broker.Properties, cfg.Runtime)
	if err != nil {
		return broker.BrokerConfig{}, err
	}

	if err := supervisor.Activate(ctx, brokerCfg); err != nil {
		reporter.Flush(reportFlushTimeout)
		return broker.BrokerConfig{}, err
	}
	return brokerCfg, nil
}

// reload re-reads the configuration and restarts the broker with it. Only the
// broker properties and runtime home take effect without a process restart.
func reload(supervisor *broker.Supervisor, flags cliFlags, log *logger.Logger) {
	cfg, err := loadConfig(flags)
	if err != nil {
		log.Error("failed to reload config, keeping current broker", "error", err)
		return
	}

	brokerCfg, err := broker.NewBrokerConfig(cfg.Broker.Properties, cfg.Runtime)
	if err != nil {
		log.Error("invalid broker configuration, keeping current broker", "error", err)
		return
	}

	if err := supervisor.Reconfigure(context.Background(), brokerCfg); err != nil {
		log.Error("failed to reconfigure broker", "error", err)
		return
	}
	log.Info("broker reconfigured", "brokerUrl", brokerCfg.LocalConnectorURL)
}
