/*
Package scheduler implements the simulation clock: a single agent that
turns the world's discrete traffic windows and every other agent's reported
arrivals into synchronized batches of notifications.

# Architecture

The scheduler never initiates work on its own account. It reacts to two
kinds of incoming messages — arrival reports from vehicles and traffic_events
replies from the world — and on a fixed wall-clock period replays whatever
it has buffered as one ordered batch:

	┌────────────────────────────────────────────────────────────┐
	│                  Processing Tick                            │
	│              (every simulation_interval)                    │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	                 ▼
	┌────────────────────────────────────────────────────────────┐
	│  1. Idle until the first real arrival is seen               │
	│  2. Drain the arrival buffer into the main queue            │
	│  3. Push the active transit list into the main queue        │
	│  4. Pop the earliest-time batch                              │
	│  5. Remove the batch's transit events from the active list  │
	│  6. Decrement remaining transit events' time                │
	│  7. notify_events(batch)                                     │
	│  8. If the transit window drained, request a fresh one      │
	└────────────────────────────────────────────────────────────┘

# Core Components

Scheduler: the clock described above.

	sched := scheduler.New(b, scheduler.Config{...})
	sched.Start()
	defer sched.Stop()

The scheduler keeps three containers across ticks: a buffer of arrival
reports not yet delivered, a list of active transit events still pending,
and a monotonic id counter used to remove specific transit entries from
that list without relying on value equality. The main priority queue used
inside one tick is rebuilt from scratch every time and discarded at the
end — it carries no state between ticks by design.

# Bootstrap

On Start, the scheduler broadcasts a fictitious arrival to every vehicle at
time ε using the reserved id vehicle_init_signal_999, so that idle vehicles
have a first event to react to, and sends a one-shot simulate_traffic
request to the world for the configured window length.

# Failure Semantics

Malformed messages are logged and discarded, never retried. A missing
world address with a pending resimulate request emits a warning and the
request is dropped; stale traffic data is tolerated because the next
window replaces it wholesale.
*/
package scheduler
