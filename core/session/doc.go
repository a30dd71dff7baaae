// Package session drives the dual-confirmation charging lifecycle of one
// reservation. Both the charger owner and the requesting user must
// acknowledge before charging starts; starting acquires a simulation
// engine for the charger, stopping settles the cost and persists a
// permanent history record. Every transition is applied with
// compare-and-set semantics against the previously read status.
package session
