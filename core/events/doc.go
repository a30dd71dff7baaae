// Package events defines the domain events emitted on the event bus.
//
// Available event types:
//   - SessionEvent: charging-session state transition
//   - SimulationEvent: engine lifecycle and samples
//   - ReminderEvent: reservation reminder sent
//   - WatchdogEvent: confirmation-timeout escalation
package events
