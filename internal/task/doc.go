// Package task manages background work submitted by interactive sessions.
// It admits, deduplicates, orders, executes and cancels tasks on a bounded
// worker pool without an external broker, and tracks the progress of each
// task through a Monitor that can be relayed to clients.
package task
