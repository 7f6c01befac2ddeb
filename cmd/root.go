// Package cmd implements the command-line interface for campuscnr.
// It provides the root command and subcommands for updating the local
// mirror of campus calendars, notices and exam routines.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/campuscnr/cmd/scheduler"
	"github.com/jonesrussell/campuscnr/cmd/status"
	"github.com/jonesrussell/campuscnr/cmd/update"
	"github.com/jonesrussell/campuscnr/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	// rootCmd represents the root command for the campuscnr CLI.
	rootCmd = &cobra.Command{
		Use:   "campuscnr",
		Short: "Mirror campus calendars, notices and exam routines",
		Long: `campuscnr scrapes the campus website for published documents -
academic calendars, notices and exam routines - downloads new files,
deduplicates them by content hash and records metadata in a local ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to Viper.
	_ = godotenv.Load()

	// Parse flags early so --config and --debug are visible to initConfig.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("campuscnr version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(update.Command())
	rootCmd.AddCommand(status.Command())
	rootCmd.AddCommand(scheduler.Command())
}

// initConfig reads in the config file and environment variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix("CNR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config.SetDefaults(viper.GetViper())

	// The config file is optional; defaults and environment variables
	// cover the common case.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if debug {
		viper.Set("logging.level", "debug")
		viper.Set("logging.development", true)
	}

	return nil
}
