package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/internal/logger"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run the configured cleanup tasks",
	Long: `Prune aged records according to the maintenance configuration:
audit entries older than clean_audit_logs_days and lifted or expired
blacklist records older than clean_blacklist_days. A zero value skips
the corresponding task.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			cfg := b.cfg
			if !cfg.Maintenance.Enabled {
				fmt.Println("Maintenance is disabled in the configuration")
				return nil
			}
			if days := cfg.Maintenance.CleanAuditLogsDays; days > 0 {
				n, err := b.services.AuditLog.CleanEntries(ctx, days)
				if err != nil {
					return fmt.Errorf("failed to clean audit log: %w", err)
				}
				logger.Info("audit log cleaned", "removed", n, "older_than_days", days)
				fmt.Printf("Removed %d audit entries older than %d days\n", n, days)
			}
			if days := cfg.Maintenance.CleanBlacklistDays; days > 0 {
				n, err := b.services.Blacklist.CleanRecords(ctx, days)
				if err != nil {
					return fmt.Errorf("failed to clean blacklist: %w", err)
				}
				logger.Info("blacklist cleaned", "removed", n, "older_than_days", days)
				fmt.Printf("Removed %d retired blacklist records older than %d days\n", n, days)
			}
			return nil
		})
	},
}
