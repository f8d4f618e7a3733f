package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/G-Research/dropingester/internal/common"
	commonconfig "github.com/G-Research/dropingester/internal/common/config"
	"github.com/G-Research/dropingester/internal/dropingester/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/dropingester"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dropingester",
		SilenceUsage: true,
		Short:        "Ingests JSON files dropped into a folder into the message database",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		migrateDbCmd(),
	)

	return cmd
}

func loadConfig() (configuration.DropIngesterConfiguration, error) {
	var config configuration.DropIngesterConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}

	err := config.Validate()
	if err != nil {
		commonconfig.LogValidationErrors(err)
	}
	return config, err
}
