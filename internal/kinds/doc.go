// Package kinds contains the task kinds shipped with taskd and registers
// their factories. Collaborators such as the history store are attached
// by Wiring before a task first runs.
package kinds
