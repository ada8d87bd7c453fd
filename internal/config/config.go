package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// WorkflowConfig holds the role ladder and the per-type workflow settings
type WorkflowConfig struct {
	// Roles maps a reviewer role to the single approval level it may act at
	Roles map[string]int `mapstructure:"roles"`
	// RetryAttempts bounds the optimistic-concurrency retry loop
	RetryAttempts int                   `mapstructure:"retry_attempts"`
	Types         map[string]TypeConfig `mapstructure:"types"`
}

// TypeConfig configures one workflow type
type TypeConfig struct {
	MaxLevel        int    `mapstructure:"max_level"`
	ApprovedStatus  string `mapstructure:"approved_status"`
	ProcessedStatus string `mapstructure:"processed_status"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/approvalflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("workflow.retry_attempts", 3)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Workflow.Roles) == 0 {
		return fmt.Errorf("workflow.roles must define at least one role")
	}
	for role, level := range c.Workflow.Roles {
		if level < 1 {
			return fmt.Errorf("workflow.roles.%s: level must be >= 1, got %d", role, level)
		}
	}

	if len(c.Workflow.Types) == 0 {
		return fmt.Errorf("workflow.types must define at least one workflow type")
	}
	for name, tc := range c.Workflow.Types {
		if tc.MaxLevel < 1 {
			return fmt.Errorf("workflow.types.%s: max_level must be >= 1, got %d", name, tc.MaxLevel)
		}
		if tc.ApprovedStatus == "" {
			return fmt.Errorf("workflow.types.%s: approved_status is required", name)
		}
	}

	if c.Workflow.RetryAttempts < 1 {
		return fmt.Errorf("workflow.retry_attempts must be >= 1, got %d", c.Workflow.RetryAttempts)
	}

	return nil
}

// WorkflowTypes converts the configured types into the domain representation
func (c *Config) WorkflowTypes() map[string]approval.WorkflowType {
	types := make(map[string]approval.WorkflowType, len(c.Workflow.Types))
	for name, tc := range c.Workflow.Types {
		types[name] = approval.WorkflowType{
			Name:            name,
			MaxLevel:        tc.MaxLevel,
			ApprovedStatus:  approval.Status(tc.ApprovedStatus),
			ProcessedStatus: approval.Status(tc.ProcessedStatus),
		}
	}
	return types
}
