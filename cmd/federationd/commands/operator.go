package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/pkg/federation/models"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operators (create, get, delete, edit, list, refresh-key)",
}

var (
	opManageOperators string
	opManageBlacklist string
	opIsClient        string
	opDisabled        string
)

func init() {
	operatorEditCmd.Flags().StringVar(&opManageOperators, "manage-operators", "", "set the manage_operators permission (true/false)")
	operatorEditCmd.Flags().StringVar(&opManageBlacklist, "manage-blacklist", "", "set the manage_blacklist permission (true/false)")
	operatorEditCmd.Flags().StringVar(&opIsClient, "is-client", "", "set the is_client permission (true/false)")
	operatorEditCmd.Flags().StringVar(&opDisabled, "disabled", "", "disable or enable the operator (true/false)")

	operatorCmd.AddCommand(operatorCreateCmd)
	operatorCmd.AddCommand(operatorGetCmd)
	operatorCmd.AddCommand(operatorDeleteCmd)
	operatorCmd.AddCommand(operatorEditCmd)
	operatorCmd.AddCommand(operatorListCmd)
	operatorCmd.AddCommand(operatorRefreshKeyCmd)
}

// withBackend loads the configuration, opens the backend and runs fn.
func withBackend(fn func(ctx context.Context, b *backend) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

var operatorCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			op, err := b.services.Operators.CreateOperator(ctx, args[0])
			if err != nil {
				return err
			}
			b.services.AuditLog.CreateEntry(ctx, models.AuditOperatorCreated,
				fmt.Sprintf("Operator %q created from the command line", op.Name), nil, nil)
			fmt.Printf("uuid:    %s\napi_key: %s\n", op.UUID, op.APIKey)
			return nil
		})
	},
}

var operatorGetCmd = &cobra.Command{
	Use:   "get <uuid>",
	Short: "Show an operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			op, err := b.services.Operators.GetOperator(ctx, args[0])
			if err != nil {
				return err
			}
			printOperators(op)
			return nil
		})
	},
}

var operatorDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete an operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			op, err := b.services.Operators.GetOperator(ctx, args[0])
			if err != nil {
				return err
			}
			if err := b.services.Operators.DeleteOperator(ctx, args[0]); err != nil {
				return err
			}
			b.services.AuditLog.CreateEntry(ctx, models.AuditOperatorDeleted,
				fmt.Sprintf("Operator %q deleted from the command line", op.Name), nil, nil)
			fmt.Printf("Operator %q deleted\n", op.Name)
			return nil
		})
	},
}

var operatorEditCmd = &cobra.Command{
	Use:   "edit <uuid>",
	Short: "Edit operator permissions and state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			uuid := args[0]
			ops := b.services.Operators

			apply := func(flag string, on func(context.Context, string, bool) (*models.Operator, error)) error {
				if flag == "" {
					return nil
				}
				v := flag == "true"
				if !v && flag != "false" {
					return fmt.Errorf("expected true or false, got %q", flag)
				}
				_, err := on(ctx, uuid, v)
				return err
			}

			if err := apply(opManageOperators, ops.SetManageOperators); err != nil {
				return err
			}
			if err := apply(opManageBlacklist, ops.SetManageBlacklist); err != nil {
				return err
			}
			if err := apply(opIsClient, ops.SetClient); err != nil {
				return err
			}
			if opDisabled == "true" {
				if _, err := ops.DisableOperator(ctx, uuid); err != nil {
					return err
				}
			} else if opDisabled == "false" {
				if _, err := ops.EnableOperator(ctx, uuid); err != nil {
					return err
				}
			}

			b.services.AuditLog.CreateEntry(ctx, models.AuditOperatorPermissionsChanged,
				fmt.Sprintf("Operator %s edited from the command line", uuid), nil, nil)
			op, err := ops.GetOperator(ctx, uuid)
			if err != nil {
				return err
			}
			printOperators(op)
			return nil
		})
	},
}

var operatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List operators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			ops, err := b.services.Operators.GetOperators(ctx, 0, 1)
			if err != nil {
				return err
			}
			printOperators(ops...)
			return nil
		})
	},
}

var operatorRefreshKeyCmd = &cobra.Command{
	Use:   "refresh-key <uuid>",
	Short: "Replace an operator's API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			op, err := b.services.Operators.RefreshAPIKey(ctx, args[0])
			if err != nil {
				return err
			}
			b.services.AuditLog.CreateEntry(ctx, models.AuditOperatorPermissionsChanged,
				fmt.Sprintf("API key of operator %q refreshed from the command line", op.Name), nil, nil)
			fmt.Printf("api_key: %s\n", op.APIKey)
			return nil
		})
	},
}

func printOperators(ops ...*models.Operator) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tNAME\tMANAGE_OPERATORS\tMANAGE_BLACKLIST\tIS_CLIENT\tDISABLED\tCREATED")
	for _, op := range ops {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\t%t\t%s\n",
			op.UUID, op.Name, op.ManageOperators, op.ManageBlacklist,
			op.IsClient, op.Disabled, op.Created.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}
