package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// ConfigureApplicationLogging sets up the standard logrus logger: console output on stdout and, when configured, a
// rotating log file. If registerer is non-nil, a counter of log lines by level is registered with it.
// The returned closer flushes and closes the log file and must be called on shutdown.
func ConfigureApplicationLogging(config Config, registerer prometheus.Registerer) (io.Closer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	level, _ := parseLogLevel(config.Level)
	log.SetLevel(level)
	log.SetFormatter(newFormatter(config.Format))

	var fileWriter io.WriteCloser = nopCloser{}
	writers := []io.Writer{os.Stdout}
	if config.File.LogPath != "" {
		lumberjackLogger := &lumberjack.Logger{
			Filename:   config.File.LogPath,
			MaxSize:    config.File.Rotation.MaxSizeMb,
			MaxBackups: config.File.Rotation.MaxBackups,
			MaxAge:     config.File.Rotation.MaxAgeDays,
			Compress:   config.File.Rotation.Compress,
		}
		fileWriter = lumberjackLogger
		if config.File.FlushInterval > 0 {
			fileWriter = NewFlushingWriter(lumberjackLogger, config.File.FlushInterval)
		}
		writers = append(writers, fileWriter)
	}
	log.SetOutput(io.MultiWriter(writers...))

	if registerer != nil {
		hook, err := NewPrometheusHook(registerer)
		if err != nil {
			return nil, errors.WithMessage(err, "error registering log metrics")
		}
		log.AddHook(hook)
	}
	return fileWriter, nil
}

func newFormatter(format string) log.Formatter {
	if format == FormatJson {
		return &log.JSONFormatter{TimestampFormat: RFC3339Milli}
	}
	return &log.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: RFC3339Milli}
}

type nopCloser struct{}

func (nopCloser) Write(p []byte) (int, error) { return len(p), nil }

func (nopCloser) Close() error { return nil }
