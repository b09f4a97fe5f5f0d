package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig     `mapstructure:"server" validate:"required"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler" validate:"required"`
	Notify    NotifyConfig     `mapstructure:"notify" validate:"required"`
	Auth      AuthConfig       `mapstructure:"auth" validate:"required"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Schedules []ScheduleConfig `mapstructure:"schedules" validate:"dive"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeout bounds the graceful HTTP shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// SchedulerConfig sizes the task scheduler.
type SchedulerConfig struct {
	Workers       int           `mapstructure:"workers" validate:"required,gt=0"`
	QueueSize     int           `mapstructure:"queue_size" validate:"required,gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0"`
}

// NotifyConfig controls the push channel for monitor updates.
type NotifyConfig struct {
	// ProgressRate is the number of progress pushes per second allowed per task
	ProgressRate float64 `mapstructure:"progress_rate" validate:"gt=0"`
	// ClientBuffer is the number of events buffered per connected client
	ClientBuffer int `mapstructure:"client_buffer" validate:"gt=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetime applies to tokens issued by this service
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL disables run history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ScheduleConfig describes a recurring system task.
type ScheduleConfig struct {
	Name      string         `mapstructure:"name" validate:"required"`
	Spec      string         `mapstructure:"spec" validate:"required"`
	Kind      string         `mapstructure:"kind" validate:"required"`
	ProjectID int64          `mapstructure:"project_id" validate:"gt=0"`
	Payload   map[string]any `mapstructure:"payload"`
}
