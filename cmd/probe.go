package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hirescope/hirescope/internal/logger"
	"github.com/hirescope/hirescope/internal/mlserver"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether the scoring server is reachable",
	Run: func(_ *cobra.Command, _ []string) {
		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			fatalf("creating a logger: %s", err)
		}

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		probe := mlserver.NewProbe(config.Server.URL, config.Server.ProbeTimeout, logger)

		if !probe.Check(context.Background()) {
			logger.Warn("scoring server is unavailable", zap.String("server", config.Server.URL))
			os.Exit(1)
		}

		logger.Info("scoring server is available", zap.String("server", config.Server.URL))
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
