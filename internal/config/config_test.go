package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

const testConfigYAML = `
server:
  port: 9090

database:
  path: "test.db"

workflow:
  roles:
    branch-reviewer: 1
    finance-manager: 2
  types:
    payment:
      max_level: 2
      approved_status: FINANCE_APPROVED
      processed_status: PAID
    business_data:
      max_level: 2
      approved_status: FINANCE_APPROVED
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Workflow.RetryAttempts)
	assert.Equal(t, 1, cfg.Workflow.Roles["branch-reviewer"])
	assert.Equal(t, "PAID", cfg.Workflow.Types["payment"].ProcessedStatus)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Workflow: WorkflowConfig{
				Roles:         map[string]int{"branch-reviewer": 1},
				RetryAttempts: 3,
				Types: map[string]TypeConfig{
					"payment": {MaxLevel: 2, ApprovedStatus: "FINANCE_APPROVED"},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no roles", func(c *Config) { c.Workflow.Roles = nil }, "workflow.roles"},
		{"zero role level", func(c *Config) { c.Workflow.Roles["branch-reviewer"] = 0 }, "level must be >= 1"},
		{"no types", func(c *Config) { c.Workflow.Types = nil }, "workflow.types"},
		{"zero max level", func(c *Config) {
			c.Workflow.Types["payment"] = TypeConfig{ApprovedStatus: "FINANCE_APPROVED"}
		}, "max_level"},
		{"missing approved status", func(c *Config) {
			c.Workflow.Types["payment"] = TypeConfig{MaxLevel: 2}
		}, "approved_status"},
		{"zero retries", func(c *Config) { c.Workflow.RetryAttempts = 0 }, "retry_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_WorkflowTypes(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	types := cfg.WorkflowTypes()
	require.Contains(t, types, "payment")

	payment := types["payment"]
	assert.Equal(t, "payment", payment.Name)
	assert.Equal(t, 2, payment.MaxLevel)
	assert.Equal(t, approval.Status("FINANCE_APPROVED"), payment.ApprovedStatus)
	assert.True(t, payment.HasProcessStep())

	assert.False(t, types["business_data"].HasProcessStep())
}
