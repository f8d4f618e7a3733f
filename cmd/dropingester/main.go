package main

import (
	"os"

	"github.com/G-Research/dropingester/cmd/dropingester/cmd"
	"github.com/G-Research/dropingester/internal/common"
)

func main() {
	common.ConfigureLogging()
	rootCmd := cmd.RootCmd()
	common.BindCommandlineArguments(rootCmd.PersistentFlags())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
