package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/dropingester/internal/common/ingesterrors"
)

func TestResolveWorkers(t *testing.T) {
	tests := map[string]struct {
		config   ListenerConfig
		numCPU   int
		expected int
	}{
		"explicit count wins":           {config: ListenerConfig{ParallelWorkers: 3}, numCPU: 64, expected: 3},
		"io bound doubles cpus":         {config: ListenerConfig{}, numCPU: 4, expected: 8},
		"io bound lower clamp":          {config: ListenerConfig{}, numCPU: 0, expected: 2},
		"io bound single cpu":           {config: ListenerConfig{}, numCPU: 1, expected: 2},
		"io bound upper clamp":          {config: ListenerConfig{ParallelWorkers: -1}, numCPU: 24, expected: 32},
		"cpu bound one per cpu":         {config: ListenerConfig{CpuBound: true}, numCPU: 6, expected: 6},
		"cpu bound at least one":        {config: ListenerConfig{CpuBound: true}, numCPU: 0, expected: 1},
		"cpu bound explicit count wins": {config: ListenerConfig{CpuBound: true, ParallelWorkers: 2}, numCPU: 6, expected: 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.config.ResolveWorkers(tc.numCPU))
		})
	}
}

func TestResolveIdleDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, ListenerConfig{IdleDelaySeconds: 5}.ResolveIdleDelay())
	assert.Equal(t, time.Duration(0), ListenerConfig{IdleDelaySeconds: 0}.ResolveIdleDelay())
	assert.Equal(t, time.Duration(0), ListenerConfig{IdleDelaySeconds: -3}.ResolveIdleDelay())
}

func TestResolveFileExtension(t *testing.T) {
	assert.Equal(t, ".json", ListenerConfig{}.ResolveFileExtension())
	assert.Equal(t, ".txt", ListenerConfig{FileExtension: "txt"}.ResolveFileExtension())
	assert.Equal(t, ".JSON", ListenerConfig{FileExtension: " .JSON "}.ResolveFileExtension())
}

func TestResolveFinalizeTimeout(t *testing.T) {
	assert.Equal(t, DefaultFinalizeTimeout, ListenerConfig{}.ResolveFinalizeTimeout())
	assert.Equal(t, time.Second, ListenerConfig{FinalizeTimeout: time.Second}.ResolveFinalizeTimeout())
}

func TestDatabaseType_UnmarshalText(t *testing.T) {
	var dbType DatabaseType
	require.NoError(t, dbType.UnmarshalText([]byte(" Postgres ")))
	assert.Equal(t, DatabaseTypePostgres, dbType)

	err := dbType.UnmarshalText([]byte("mssql"))
	assert.True(t, ingesterrors.IsInvalidArgument(err))
}

func validConfig() DropIngesterConfiguration {
	return DropIngesterConfiguration{
		Listener: ListenerConfig{
			DropFolderPath:    "/data/drop",
			ArchiveFolderPath: "/data/archive",
		},
		Database: DatabaseConfig{
			Type:       DatabaseTypeSqlite,
			SqlitePath: "/data/dropingester.db",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(c *DropIngesterConfiguration)
		isValid bool
	}{
		"valid": {
			mutate:  func(c *DropIngesterConfiguration) {},
			isValid: true,
		},
		"missing drop folder": {
			mutate:  func(c *DropIngesterConfiguration) { c.Listener.DropFolderPath = "" },
			isValid: false,
		},
		"archive equals drop folder": {
			mutate:  func(c *DropIngesterConfiguration) { c.Listener.ArchiveFolderPath = "/data/drop/" },
			isValid: false,
		},
		"sqlite without path": {
			mutate:  func(c *DropIngesterConfiguration) { c.Database.SqlitePath = "" },
			isValid: false,
		},
		"postgres without sqlite path": {
			mutate: func(c *DropIngesterConfiguration) {
				c.Database.Type = DatabaseTypePostgres
				c.Database.SqlitePath = ""
			},
			isValid: true,
		},
		"unknown database type": {
			mutate:  func(c *DropIngesterConfiguration) { c.Database.Type = "mssql" },
			isValid: false,
		},
		"bad log level": {
			mutate:  func(c *DropIngesterConfiguration) { c.Logging.Level = "chatty" },
			isValid: false,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.isValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
