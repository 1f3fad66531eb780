package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"grievance/app"
	"grievance/models"
)

// AdminCmd groups admin account commands
func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	cmd.AddCommand(adminCreateCmd(), adminDeactivateCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			password, _ := cmd.Flags().GetString("password")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				admin, err := a.Admin.CreateAdmin(ctx, name, email, models.AdminRole(role), password)
				if err != nil {
					return fmt.Errorf("failed to create admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s created %s %s (%s)\n", okText("✓"), admin.Role, admin.Email, admin.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Login email")
	cmd.Flags().String("role", string(models.RoleDepartmentAdmin), "super_admin, department_admin or field_officer")
	cmd.Flags().String("password", "", "Initial password (at least 8 characters)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func adminDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [admin-id]",
		Short: "Deactivate an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				if err := a.Admins.SetActive(ctx, args[0], false); err != nil {
					return fmt.Errorf("failed to deactivate admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deactivated %s\n", okText("✓"), args[0])
				return nil
			})
		},
	}
}
