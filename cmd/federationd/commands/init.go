package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/pkg/config"
)

var (
	initForce      bool
	initConfigOnly bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration, database schema and storage",
	Long: `Write a sample configuration file, create the database tables and the
attachment storage directory.

Examples:
  # Write a sample config and initialize the schema
  federationd init

  # Overwrite an existing config file
  federationd init --force

  # Only write the config file, skip the database
  federationd init --config-only`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVar(&initConfigOnly, "config-only", false, "write the config file without touching the database")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Printf("Configuration already exists at %s, keeping it\n", path)
	} else {
		if err := config.WriteSample(path, initForce); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
	}

	if initConfigOnly {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Opening the backend creates missing tables and the storage
	// directory, and verifies both.
	b, err := openBackend(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if _, err := b.services.Operators.GetMasterOperator(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize master operator: %w", err)
	}

	fmt.Println("Database schema and storage initialized")
	return nil
}
