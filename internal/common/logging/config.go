package logging

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJson = "json"
)

// Config defines logging configuration.
type Config struct {
	// Log level, e.g. INFO, ERROR etc
	Level string
	// Logging format, either text or json
	Format string
	// Defines configuration for file logging. File logging is disabled when LogPath is empty.
	File struct {
		// The location of the logfile on disk
		LogPath string
		// How often buffered file output is flushed. Zero writes through unbuffered.
		FlushInterval time.Duration
		// Log Rotation Options
		Rotation struct {
			// Maximum size in megabytes of the log file before it gets rotated
			MaxSizeMb int
			// Maximum number of old log files to retain
			MaxBackups int
			// Maximum number of days to retain old log files
			MaxAgeDays int
			// Whether to compress rotated log files
			Compress bool
		}
	}
}

func (c Config) Validate() error {
	if _, err := parseLogLevel(c.Level); err != nil {
		return err
	}
	if err := validateLogFormat(c.Format); err != nil {
		return err
	}
	if c.File.LogPath != "" {
		if c.File.FlushInterval < 0 {
			return errors.New("file.flushInterval must not be negative")
		}
		rotation := c.File.Rotation
		if rotation.MaxSizeMb < 0 || rotation.MaxBackups < 0 || rotation.MaxAgeDays < 0 {
			return errors.New("file.rotation values must not be negative")
		}
	}
	return nil
}

func validateLogFormat(f string) error {
	switch f {
	case "", FormatText, FormatJson:
		return nil
	default:
		return errors.Errorf("unknown log format: %s.  Valid formats are [%s %s]", f, FormatText, FormatJson)
	}
}

func parseLogLevel(level string) (logrus.Level, error) {
	if level == "" {
		return logrus.InfoLevel, nil
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel, errors.Errorf("unknown level: %s", level)
	}
	return parsed, nil
}
