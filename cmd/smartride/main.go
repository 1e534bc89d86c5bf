package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartride/internal/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "smartride"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Carpooling trip and seat reservation API",
		Long: `SmartRide publishes carpooling trips and books seats on them.

Drivers publish, edit and delete trips. Passengers book, resize and cancel
seat reservations. Every seat change is applied as one atomic update of the
trip so a trip is never overbooked.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_FILE", configPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// loadConfig is shared by the subcommands that need configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
