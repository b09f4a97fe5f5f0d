// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines the event envelope and handler interfaces that allow
// loose coupling between components. Submission surfaces emit task requests,
// task monitors emit updates, and consumers such as the push hub, the run
// history recorder and the metrics collectors subscribe without knowing
// about each other.
//
// The primary components are:
// - Event: the envelope carried through the system
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
