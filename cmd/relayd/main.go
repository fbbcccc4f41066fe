package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberworks/relay/pkg/auth"
	"github.com/emberworks/relay/pkg/bus"
	"github.com/emberworks/relay/pkg/config"
	"github.com/emberworks/relay/pkg/event"
	"github.com/emberworks/relay/pkg/gateway"
	"github.com/emberworks/relay/pkg/log"
	"github.com/emberworks/relay/pkg/metrics"
	"github.com/emberworks/relay/pkg/store"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Relay - real-time event backbone for cooperative games",
	Long: `Relay pairs an in-process publish/subscribe event bus with a
websocket connection gateway: clients authenticate, subscribe to event
topics, and exchange game messages under per-connection rate limits,
while game services consume and produce events through the bus.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Relay version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", "", "Path to YAML config file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		return run(cfg)
	},
}

func run(cfg *config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	metrics.SetVersion(Version)
	logger := log.WithComponent("relayd")

	// Event journal (optional persistence)
	var journal *store.Journal
	if cfg.Bus.EnablePersistence {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		j, err := store.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open event journal: %w", err)
		}
		journal = j
		defer journal.Close()
	}

	// Event bus
	b := bus.New(cfg.Bus)
	if journal != nil {
		b.SetHistoryProvider(journal)
	}
	if err := b.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize bus: %w", err)
	}
	metrics.RegisterComponent("bus", true, "")

	if journal != nil {
		if err := subscribeJournal(b, journal); err != nil {
			return fmt.Errorf("failed to wire journal subscriber: %w", err)
		}
	}

	// Token validation
	validator, err := buildValidator(cfg.Auth)
	if err != nil {
		return err
	}

	// Connection gateway
	gw := gateway.New(cfg.Gateway, cfg.Auth, b, validator)
	metrics.RegisterComponent("gateway", true, "")

	// Metrics collector
	if cfg.Bus.Monitoring.EnableMetrics {
		collector := metrics.NewCollector(
			statusSource{bus: b, gw: gw},
			cfg.Bus.Monitoring.MetricsInterval(),
		)
		collector.Start()
		defer collector.Stop()
	}

	// HTTP servers: gateway websocket + observability
	gatewaySrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gateway.NewHandler(gw),
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/health", metrics.HealthHandler())
	metricsMux.Handle("/ready", metrics.ReadyHandler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway server error: %w", err)
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = gatewaySrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	b.Shutdown()

	return nil
}

// subscribeJournal appends every accepted publish to the bbolt journal as
// an audit trail.
func subscribeJournal(b *bus.Bus, journal *store.Journal) error {
	_, err := b.Subscribe(&bus.Subscription{
		SubscriberID: "journal",
		Name:         "event-journal",
		Categories: []event.Category{
			event.CategoryGameState,
			event.CategoryPlayerAction,
			event.CategoryUserNotification,
			event.CategoryAdminAction,
			event.CategorySystemStatus,
		},
	}, func(_ context.Context, ev *event.Event) error {
		return journal.Append(ev)
	})
	return err
}

func buildValidator(cfg config.Auth) (auth.Validator, error) {
	switch cfg.Mode {
	case "jwt":
		return auth.NewJWTValidator([]byte(cfg.JWTSecret)), nil
	case "static", "":
		v := auth.NewStaticValidator()
		if token := os.Getenv("RELAY_STATIC_TOKEN"); token != "" {
			v.Register(token, "operator", []string{"admin"}, 0)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// statusSource feeds the metrics collector from the bus and gateway
type statusSource struct {
	bus *bus.Bus
	gw  *gateway.Gateway
}

func (s statusSource) ActiveSubscriptionCount() int {
	return s.bus.ActiveSubscriptionCount()
}

func (s statusSource) ConnectionCounts() map[string]int {
	return s.gw.ConnectionCounts()
}
