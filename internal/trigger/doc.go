// Package trigger submits system tasks on recurring schedules. Schedules
// are cron expressions or fixed intervals; each firing creates a fresh
// task through the task registry and enqueues it, leaving overlap with a
// still pending run to the scheduler's match policy.
package trigger
