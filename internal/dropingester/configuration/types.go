package configuration

import (
	"strings"
	"time"

	"github.com/G-Research/dropingester/internal/common/database"
	"github.com/G-Research/dropingester/internal/common/ingesterrors"
	"github.com/G-Research/dropingester/internal/common/logging"
)

type DropIngesterConfiguration struct {
	// Drop folder and worker configuration
	Listener ListenerConfig
	// Metadata and message store configuration
	Database DatabaseConfig
	// Log sink configuration
	Logging logging.Config
	// Port on which prometheus metrics are served
	MetricsPort uint16
	// Port on which the health endpoint is served
	HttpPort uint16
}

type ListenerConfig struct {
	// Folder into which producers drop files
	DropFolderPath string `validate:"required"`
	// Folder into which processed files are moved
	ArchiveFolderPath string `validate:"required"`
	// Extension of eligible files, including the dot. Matched case-insensitively.
	FileExtension string
	// Number of worker loops. Zero or less means derive it from the number of CPUs.
	ParallelWorkers int
	// Use the CPU-bound policy when deriving the number of workers
	CpuBound bool
	// Seconds a worker sleeps after finding no work or hitting an error. Zero disables the sleep.
	IdleDelaySeconds int
	// Time allowed for finalizing a claimed file once the worker has been asked to stop
	FinalizeTimeout time.Duration `validate:"gte=0"`
}

const (
	DefaultFileExtension   = ".json"
	DefaultFinalizeTimeout = 30 * time.Second
	maxIoBoundWorkers      = 32
	minIoBoundWorkers      = 2
)

// ResolveWorkers returns the number of worker loops to run on a machine with numCPU CPUs.
// An explicit ParallelWorkers wins. Otherwise I/O-bound work gets clamp(2*numCPU, 2, 32) and
// CPU-bound work gets one worker per CPU.
func (c ListenerConfig) ResolveWorkers(numCPU int) int {
	if c.ParallelWorkers > 0 {
		return c.ParallelWorkers
	}
	if c.CpuBound {
		return max(1, numCPU)
	}
	return min(max(2*numCPU, minIoBoundWorkers), maxIoBoundWorkers)
}

func (c ListenerConfig) ResolveIdleDelay() time.Duration {
	return time.Duration(max(0, c.IdleDelaySeconds)) * time.Second
}

func (c ListenerConfig) ResolveFileExtension() string {
	ext := strings.TrimSpace(c.FileExtension)
	if ext == "" {
		return DefaultFileExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (c ListenerConfig) ResolveFinalizeTimeout() time.Duration {
	if c.FinalizeTimeout <= 0 {
		return DefaultFinalizeTimeout
	}
	return c.FinalizeTimeout
}

type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeSqlite   DatabaseType = "sqlite"
)

func (t *DatabaseType) UnmarshalText(text []byte) error {
	switch s := DatabaseType(strings.ToLower(strings.TrimSpace(string(text)))); s {
	case DatabaseTypePostgres, DatabaseTypeSqlite:
		*t = s
		return nil
	default:
		return &ingesterrors.ErrInvalidArgument{
			Name:    "database.type",
			Value:   string(text),
			Message: "valid types are postgres and sqlite",
		}
	}
}

type DatabaseConfig struct {
	// Which store backs metadata and messages
	Type DatabaseType `validate:"required,oneof=postgres sqlite"`
	// Used when Type is postgres
	Postgres database.PostgresConfig
	// Database file, used when Type is sqlite
	SqlitePath string `validate:"required_if=Type sqlite"`
	// Upper bound on any single sqlite store call. Zero means no bound.
	SqliteQueryTimeout time.Duration `validate:"gte=0"`
}
