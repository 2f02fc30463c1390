package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hirescope"

	defaultServerURL = "http://127.0.0.1:5000"
)

type Config struct {
	Server   *ServerConfig   `mapstructure:"server"`
	Offline  bool            `mapstructure:"offline"`
	Fallback *FallbackConfig `mapstructure:"fallback"`
	Evaluate *EvaluateConfig `mapstructure:"evaluate"`
}

type ServerConfig struct {
	URL            string        `mapstructure:"url"`
	TokenFile      string        `mapstructure:"token-file"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe-timeout"`
}

type FallbackConfig struct {
	Seed int64 `mapstructure:"seed"`
}

type EvaluateConfig struct {
	Resume string  `mapstructure:"resume"`
	Video  string  `mapstructure:"video"`
	CGPA   float64 `mapstructure:"cgpa"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hirescope is a simple cli for scoring job candidates from a resume, an interview video and a CGPA",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("server.token-file", "HIRESCOPE_TOKEN_FILE"); err != nil {
		log.Fatalf("binding HIRESCOPE_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hirescope.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().BoolP("offline", "o", false, "skip the scoring server and evaluate on-device")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("offline", rootCmd.PersistentFlags().Lookup("offline"))

	viper.SetDefault("server.url", defaultServerURL)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional when not named explicitly. Flags and
	// defaults can carry a full run. We can't proceed if the config file
	// parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{URL: defaultServerURL}
	}
	if config.Fallback == nil {
		config.Fallback = &FallbackConfig{}
	}
	if config.Evaluate == nil {
		config.Evaluate = &EvaluateConfig{}
	}

	return config, nil
}
