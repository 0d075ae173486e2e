package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/pkg/federation/models"
)

var (
	auditLimit int
	auditPage  int
	auditTypes string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			var types []models.AuditType
			if auditTypes != "" {
				for _, t := range strings.Split(auditTypes, ",") {
					typ := models.AuditType(strings.TrimSpace(t))
					if !typ.IsValid() {
						return fmt.Errorf("unknown audit entry type %q", typ)
					}
					types = append(types, typ)
				}
			}

			entries, err := b.services.AuditLog.GetEntries(ctx, auditLimit, auditPage, types)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tTYPE\tOPERATOR\tMESSAGE")
			for _, e := range entries {
				operator := "-"
				if e.OperatorUUID != nil {
					operator = *e.OperatorUUID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, operator, e.Message)
			}
			return w.Flush()
		})
	},
}

func init() {
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 0, "page size (default: configured maximum)")
	auditListCmd.Flags().IntVar(&auditPage, "page", 1, "page number")
	auditListCmd.Flags().StringVar(&auditTypes, "types", "", "comma-separated audit entry types to include")

	auditCmd.AddCommand(auditListCmd)
}
