package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grievance/app"
	"grievance/models"
)

// CheckDuplicateCmd runs the duplicate detector for a point
func CheckDuplicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-duplicate",
		Short: "List recent complaints near a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lng, _ := cmd.Flags().GetFloat64("lng")
			category, _ := cmd.Flags().GetString("category")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				result, err := a.Complaint.CheckDuplicate(ctx, &models.DuplicateCheckRequest{
					Latitude:  lat,
					Longitude: lng,
					Category:  models.Category(category),
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case !result.Checked:
					fmt.Fprintf(out, "%s duplicate index unavailable: %s\n", warnText("!"), result.Message)
					return nil
				case !result.IsDuplicate:
					fmt.Fprintf(out, "%s no similar complaints nearby\n", okText("✓"))
					return nil
				}

				fmt.Fprintf(out, "%s %d similar complaint(s) found\n\n", warnText("!"), len(result.Candidates))
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tDISTANCE\tCREATED\tADDRESS")
				fmt.Fprintln(w, "--\t------\t--------\t-------\t-------")
				for _, c := range result.Candidates {
					fmt.Fprintf(w, "%s\t%s\t%.0fm\t%s\t%s\n",
						c.ID, c.Status, c.Distance, c.CreatedAt.Format("2006-01-02 15:04"), c.Address)
				}
				w.Flush()
				return nil
			})
		},
	}
	cmd.Flags().Float64("lat", 0, "Latitude")
	cmd.Flags().Float64("lng", 0, "Longitude")
	cmd.Flags().String("category", "", "Complaint category")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")
	cmd.MarkFlagRequired("category")
	return cmd
}

// SLACmd prints the SLA state of one complaint
func SLACmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sla [complaint-id]",
		Short: "Show the SLA status of a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				status, err := a.Complaint.GetSLAStatus(ctx, args[0], "")
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Complaint: %s\n", status.ComplaintID)
				fmt.Fprintf(out, "Status: %s\n", status.Status)
				if status.TargetResolutionDate != nil {
					fmt.Fprintf(out, "Target: %s\n", status.TargetResolutionDate.Format("2006-01-02 15:04 MST"))
				} else {
					fmt.Fprintf(out, "Target: %s\n", warnText("(not set)"))
				}
				switch {
				case status.IsOverdue:
					fmt.Fprintf(out, "SLA: %s\n", badText("OVERDUE"))
				case status.InWarningWindow:
					fmt.Fprintf(out, "SLA: %s, %.1f hours left\n", warnText("DUE SOON"), status.HoursRemaining)
				default:
					fmt.Fprintf(out, "SLA: %s, %.1f hours left\n", okText("ON TRACK"), status.HoursRemaining)
				}
				fmt.Fprintf(out, "Escalation level: %d\n", status.EscalationLevel)
				return nil
			})
		},
	}
}
