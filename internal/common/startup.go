package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/G-Research/dropingester/internal/common/config"
	"github.com/G-Research/dropingester/internal/common/logging"
)

const baseConfigFileName = "config"

// EnvPrefix is prepended to environment variable names used to override configuration,
// e.g. DROPINGESTER_LISTENER_DROPFOLDERPATH.
const EnvPrefix = "DROPINGESTER"

// BindCommandlineArguments binds the parsed flags of flags to viper so they can be read with viper.Get*.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		log.Error(err.Error())
		os.Exit(-1)
	}
}

// LoadConfig reads config.yaml from defaultPath, merges each file in overrideConfigs on top in order, applies
// environment overrides and unmarshals the result into config.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WithMessagef(err, "error reading base config path=%s", defaultPath)
		}
		log.Warnf("No base config found in %s, relying on overrides and environment", defaultPath)
	} else {
		log.Infof("Read base config from %s", v.ConfigFileUsed())
	}

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "error reading config from %s", overrideConfig)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, err
	}
	return v, nil
}

// ConfigureLogging sets up logrus the way every command expects before configuration has been loaded.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// ConfigureApplicationLogging replaces the bootstrap logging set up by ConfigureLogging with the configured sinks.
func ConfigureApplicationLogging(config logging.Config, registerer prometheus.Registerer) io.Closer {
	closer, err := logging.ConfigureApplicationLogging(config, registerer)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
	return closer
}
