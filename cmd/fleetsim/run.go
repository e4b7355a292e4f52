package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetsim/pkg/config"
	"github.com/cuemby/fleetsim/pkg/log"
	"github.com/cuemby/fleetsim/pkg/metrics"
	"github.com/cuemby/fleetsim/pkg/seedstore"
	"github.com/cuemby/fleetsim/pkg/simulation"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation to completion or for a fixed duration",
	Long: `run loads a config file (or the built-in default), builds every
agent it describes, and drives the simulation for the requested duration.

Metrics are served over HTTP for the life of the run so an operator can
watch stock levels, negotiation outcomes, and vehicle utilization without
waiting for the run to finish (scrape http://<metrics-addr>/metrics).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		duration, _ := cmd.Flags().GetDuration("duration")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		seedDBPath, _ := cmd.Flags().GetString("seed-db")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		if seedDBPath != "" {
			cfg.SeedDBPath = seedDBPath
		}

		seeds, err := seedstore.Open(cfg.SeedDBPath)
		if err != nil {
			return fmt.Errorf("open seed store %s: %w", cfg.SeedDBPath, err)
		}
		defer seeds.Close()

		sim, err := simulation.Build(cfg, seeds)
		if err != nil {
			return fmt.Errorf("build simulation: %w", err)
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("world", true, "built")
		metrics.RegisterComponent("scheduler", true, "built")
		metrics.RegisterComponent("bus", true, "built")

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Errorf("metrics server error: %v", err)
			}
		}()
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Printf("Health endpoints: http://%s/health, /ready, /live\n", metricsAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nShutting down...")
			cancel()
		}()

		fmt.Printf("Simulation running for up to %s. Press Ctrl+C to stop early.\n", duration)
		sim.Run(ctx, duration)
		fmt.Println("Simulation complete")
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to a YAML config file (uses built-in defaults if unset)")
	runCmd.Flags().Duration("duration", 60*time.Second, "How long to run the simulation")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics on")
	runCmd.Flags().String("seed-db", "", "Override the config's seed_db_path")
}
