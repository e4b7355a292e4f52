// Package config loads the flat simulation configuration record described
// in SPEC_FULL §6: grid shape, traffic generation knobs, and per-agent-kind
// tuning. Grounded on the yaml-tagged struct style used for scenario config
// in the example pack (integration_tests/framework/runner.go), adapted from
// a test-scenario schema to a simulation-run schema.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects how the world's initial cost matrix is generated.
type Mode string

const (
	ModeUniform   Mode = "uniform"
	ModeDifferent Mode = "different"
)

// TrafficProbabilities are the per-step probabilities the world model rolls
// against when advancing its traffic trajectory (SPEC_FULL §4.2).
type TrafficProbabilities struct {
	Onset  float64 `yaml:"onset"`
	Spread float64 `yaml:"spread"`
	Clear  float64 `yaml:"clear"`
}

// VehicleConfig tunes every vehicle agent spawned for a run.
type VehicleConfig struct {
	Count     int     `yaml:"count"`
	Capacity  int     `yaml:"capacity"`
	MaxFuel   float64 `yaml:"max_fuel"`
	WeightKg  float64 `yaml:"weight_kg"`
	MaxOrders int     `yaml:"max_orders"`
}

// WarehouseConfig tunes every warehouse agent spawned for a run.
type WarehouseConfig struct {
	Count                 int     `yaml:"count"`
	MaxCapacity           int     `yaml:"max_capacity"`
	ResupplyThreshold     int     `yaml:"resupply_threshold"`
	ResupplyBatch         int     `yaml:"resupply_batch"`
	ResupplyCheckInterval float64 `yaml:"resupply_check_interval"`
}

// StoreConfig tunes every store agent spawned for a run.
type StoreConfig struct {
	Count         int     `yaml:"count"`
	BuyQuantity   int     `yaml:"buy_quantity"`
	BuyFrequency  float64 `yaml:"buy_frequency"`
	BuyProbability float64 `yaml:"buy_probability"`
}

// SupplierConfig tunes every supplier agent spawned for a run.
type SupplierConfig struct {
	Count int `yaml:"count"`
}

// Config is the complete simulation run configuration (SPEC_FULL §6,
// "Configuration"). CLI flags, when present, override fields loaded from
// file — the CLI is "optional and purely a thin wrapper" per spec.
type Config struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Mode       Mode `yaml:"mode"`
	MaxEdgeCost float64 `yaml:"max_edge_cost"`
	Seed       *int `yaml:"seed"`
	Highway    bool `yaml:"highway"`

	GasStations int `yaml:"gas_stations"`

	Traffic          TrafficProbabilities `yaml:"traffic"`
	TrafficInterval  int                  `yaml:"traffic_interval"`
	WindowLength     int                  `yaml:"window_length"`
	SimulationInterval float64            `yaml:"simulation_interval"`

	// NegotiationTimeout (T_neg) and VehicleTimeout (T_veh) bound buy and
	// vehicle-assignment negotiations across every warehouse/store/supplier
	// (SPEC_FULL §5, "Cancellation"). Seconds.
	NegotiationTimeout float64 `yaml:"negotiation_timeout"`
	VehicleTimeout     float64 `yaml:"vehicle_timeout"`

	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Store     StoreConfig     `yaml:"store"`
	Supplier  SupplierConfig  `yaml:"supplier"`

	SeedDBPath string `yaml:"seed_db_path"`
}

// Default returns a Config with the same shape as a small hand-run demo:
// a 5x5 grid, uniform costs, one of each facility, matching
// original_source/world/world.py's constructor defaults.
func Default() *Config {
	return &Config{
		Width:       5,
		Height:      5,
		Mode:        ModeUniform,
		MaxEdgeCost: 10,
		Traffic:     TrafficProbabilities{Onset: 0.1, Spread: 0.05, Clear: 0.2},
		TrafficInterval:    5,
		WindowLength:       10,
		SimulationInterval: 1,
		NegotiationTimeout: 5,
		VehicleTimeout:     3,
		Vehicle:   VehicleConfig{Count: 2, Capacity: 20, MaxFuel: 100, WeightKg: 1500, MaxOrders: 5},
		Warehouse: WarehouseConfig{Count: 1, MaxCapacity: 1000, ResupplyThreshold: 50, ResupplyBatch: 200, ResupplyCheckInterval: 20},
		Store:     StoreConfig{Count: 1, BuyQuantity: 10, BuyFrequency: 15, BuyProbability: 0.5},
		Supplier:  SupplierConfig{Count: 1},
		SeedDBPath: "seeds.db",
	}
}

// Load reads a YAML config file, layering it over Default() so any field
// the file omits keeps its default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a runnable
// simulation (SPEC_FULL §7's "Fatal" error class: "configuration
// inconsistency... refuse to start; emit a clear diagnostic").
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Mode != ModeUniform && c.Mode != ModeDifferent {
		return fmt.Errorf("config: mode must be %q or %q, got %q", ModeUniform, ModeDifferent, c.Mode)
	}
	if c.Warehouse.Count == 0 && c.Store.Count > 0 {
		return fmt.Errorf("config: cannot run %d stores with zero warehouses", c.Store.Count)
	}
	if c.Supplier.Count == 0 && c.Warehouse.Count > 0 {
		return fmt.Errorf("config: cannot run %d warehouses with zero suppliers", c.Warehouse.Count)
	}
	if c.Vehicle.Count == 0 {
		return fmt.Errorf("config: at least one vehicle is required")
	}
	totalFacilities := c.Warehouse.Count + c.Supplier.Count + c.Store.Count + c.GasStations
	if totalFacilities > c.Width*c.Height {
		return fmt.Errorf("config: %d facilities requested but grid only has %d nodes", totalFacilities, c.Width*c.Height)
	}
	return nil
}
