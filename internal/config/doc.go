// Package config loads the daemon settings from an optional YAML file and
// TASKD_* environment variables, applies defaults, and validates the result
// before any component is built from it.
package config
