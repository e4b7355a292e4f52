/*
Package log provides structured logging for fleetsim using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Architecture

fleetsim's logging system provides structured JSON logging with minimal
overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("warehouse")               │          │
	│  │  - WithAgentID("warehouse-1")                │          │
	│  │  - WithVehicleID("vehicle-3")                │          │
	│  │  - WithOrderID(42)                           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "warehouse",                │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "store-buy accepted"          │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF store-buy accepted component=warehouse │  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

Debug: verbose internal state (negotiation candidate lists, route
recalculation detail) — development and troubleshooting only.

Info: normal agent lifecycle (order confirmed, vehicle arrived, resupply
triggered) — the default production level.

Warn: unexpected but recoverable conditions (malformed message discarded,
negotiation timed out with no candidates).

Error: operation failures that need investigation (bus send failed, config
validation failed).

Fatal: unrecoverable startup errors (log.Fatal exits the process).

# Usage

Initializing the logger:

	import "github.com/cuemby/fleetsim/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("simulation starting")
	log.Debug("evaluating negotiation candidates")
	log.Warn("negotiation timed out with no candidates")
	log.Error("failed to send bus message")
	log.Fatal("invalid configuration") // exits process

Structured logging:

	log.Logger.Info().
		Str("order_id", "42").
		Int("quantity", 10).
		Msg("order confirmed")

Component and context loggers:

	warehouseLog := log.WithComponent("warehouse")
	warehouseLog.Info().Msg("resupply threshold crossed")

	agentLog := log.WithAgentID("warehouse-1")
	agentLog.Debug().Msg("sweeping assignment deadline")

	vehicleLog := log.WithVehicleID("vehicle-3")
	vehicleLog.Info().Msg("arrived at destination")

	orderLog := log.WithOrderID(42)
	orderLog.Info().Msg("delivered")

# Integration Points

This package is used by every agent package:

  - pkg/scheduler, pkg/vehicle, pkg/warehouse, pkg/supplier, pkg/store,
    pkg/world: log discarded malformed or unexpected messages at Warn
  - pkg/scheduler: also warns when no world address is configured for a
    simulate_traffic request
  - pkg/warehouse, pkg/supplier: log each order-proposal broadcast at
    Debug, with the negotiation's session id
  - pkg/bus: does not log

# Design Patterns

Global Logger Pattern: a single package-level Logger instance, initialized
once at process start by cmd/fleetsim, accessible from every package
without being passed down through constructors.

Context Logger Pattern: WithComponent/WithAgentID/WithVehicleID/WithOrderID
return a child zerolog.Logger with that field pre-attached, so call sites
don't repeat it on every log line.

# Best Practices

Do:
  - Use Info level in production runs
  - Attach structured fields instead of formatting them into the message
  - Use a component or agent-ID logger per agent instance
  - Log negotiation timeouts and malformed messages at Warn, not Error —
    they're expected outcomes of the negotiation protocol, not bugs

Don't:
  - Use Debug level for a long run (negotiation candidate dumps are
    verbose)
  - Concatenate interpolated strings into the message; use .Str/.Int

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
