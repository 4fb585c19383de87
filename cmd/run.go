package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jwiersma/interflow/config"
	"github.com/jwiersma/interflow/core/exchange"
	coremetrics "github.com/jwiersma/interflow/core/metrics"
	"github.com/jwiersma/interflow/infra/etm"
	"github.com/jwiersma/interflow/infra/logger"
	"github.com/jwiersma/interflow/infra/metrics"
	"github.com/jwiersma/interflow/infra/mqtt"
	"github.com/jwiersma/interflow/internal/eventbus"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clear the exchange market for the configured iterations",
	RunE:  runMarket,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMarket(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("run")

	market, err := buildMarket(ctx, cfg, cfg.Market.ResetEnabled())
	if err != nil {
		return err
	}

	sink, err := buildSink(cfg.Metrics, log)
	if err != nil {
		return err
	}
	market.SetMetricsSink(sink)

	bus := eventbus.New()
	defer bus.Close()
	market.SetEventBus(bus)

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		publisher.Attach(bus)
		defer publisher.Close()
	}

	log.Infof("clearing market '%s' for %d iterations", market.Name(), cfg.Market.Iterations)
	return market.ClearMarket(ctx, cfg.Market.Iterations)
}

// buildMarket wires the scenario client factory into a validated market.
func buildMarket(ctx context.Context, cfg *config.Config, reset bool) (*exchange.Market, error) {
	factory := etm.NewFactory(cfg.API, logger.New("etm-client"))

	profiles, err := config.LoadMPIProfiles(cfg.MPIProfiles)
	if err != nil {
		return nil, err
	}

	market, err := exchange.NewMarket(ctx, exchange.MarketConfig{
		Name:            cfg.Market.Name,
		WorkDir:         cfg.Market.WorkDir,
		Reset:           reset,
		Interconnectors: cfg.Interconnectors,
		ScenarioIDs:     cfg.Regions,
		MPIProfiles:     profiles,
		ExcludeUnits:    cfg.Market.ExcludePattern(),
	}, factory, logger.New("exchange"))
	if err != nil {
		return nil, fmt.Errorf("initialise market: %w", err)
	}
	return market, nil
}

// buildSink assembles the configured metrics sinks.
func buildSink(cfg config.MetricsConfig, log logger.Logger) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink

	if cfg.Prometheus.Enabled {
		cfg.Prometheus.SetDefaults()
		prom, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prometheus sink: %w", err)
		}
		sinks = append(sinks, prom)

		go func() {
			addr := fmt.Sprintf(":%d", cfg.Prometheus.Port)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Errorf("prometheus listener: %v", err)
			}
		}()
	}
	if cfg.Influx.Enabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}

	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}
