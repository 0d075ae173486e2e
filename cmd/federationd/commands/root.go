// Package commands implements the federationd CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/internal/version"
	"github.com/abuseshield/federation/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "federationd",
	Short: "FederationServer - federated abuse reporting and blacklisting",
	Long: `federationd runs a federation server: operators authenticated by API
key register entities, submit evidence, and blacklist entities under a
typed reason. Every state change lands in an append-only audit log.

Use "federationd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. It is called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $XDG_CONFIG_HOME/federation/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(operatorCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

// loadConfig loads the configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("federationd %s\n", version.Version)
	},
}
