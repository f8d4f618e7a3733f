package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G-Research/dropingester/internal/common"
	"github.com/G-Research/dropingester/internal/dropingester"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watches the drop folder and ingests files until stopped",
		RunE:  runDropIngester,
	}
	return cmd
}

func runDropIngester(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	logCloser := common.ConfigureApplicationLogging(config.Logging, registry)
	defer func() {
		if err := logCloser.Close(); err != nil {
			log.WithError(err).Warn("Error closing log file")
		}
	}()
	return dropingester.Run(config, registry)
}
