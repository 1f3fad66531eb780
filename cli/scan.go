package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grievance/app"
	"grievance/models"
	"grievance/summary"
)

// ScanCmd runs one escalation scan and prints the report
func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one escalation scan",
		Long: `Scan every pending and in-progress complaint once: initialise missing SLA
targets, flag overdue complaints and escalate them. With --dry-run nothing is
written and no notifications are sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if dryRun {
				cfg.Escalation.DryRun = true
			}

			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				report, err := a.Escalation.ProcessEscalations(ctx)
				if err != nil {
					return fmt.Errorf("scan failed: %w", err)
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().Bool("dry-run", false, "Evaluate without writing or notifying")
	return cmd
}

// DigestCmd renders the scan digest image
func DigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Render a PNG digest of a dry-run escalation scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			cfg.Escalation.DryRun = true

			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				report, err := a.Escalation.ProcessEscalations(ctx)
				if err != nil {
					return fmt.Errorf("scan failed: %w", err)
				}
				png, err := summary.RenderDigest(report)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, png, 0o644); err != nil {
					return fmt.Errorf("failed to write digest: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s digest written to %s (%d escalations)\n", okText("✓"), out, report.Escalated)
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "escalation-digest.png", "Output file")
	return cmd
}

func printReport(out io.Writer, report *models.ScanReport) {
	mode := ""
	if report.DryRun {
		mode = warnText(" (dry run)")
	}
	fmt.Fprintf(out, "Scan finished in %s%s\n", report.Duration(), mode)
	if report.Cancelled {
		fmt.Fprintln(out, badText("Scan was cancelled before every complaint was processed"))
	}
	fmt.Fprintf(out, "  scanned:      %d\n", report.Scanned)
	fmt.Fprintf(out, "  initialised:  %d\n", report.TargetsInitialised)
	fmt.Fprintf(out, "  overdue:      %d\n", report.NewlyOverdue)
	fmt.Fprintf(out, "  escalated:    %s\n", levelCounts(report))
	fmt.Fprintf(out, "  warnings:     %d\n", report.Warnings)
	fmt.Fprintf(out, "  conflicts:    %d\n", report.Conflicts)
	if report.Failures > 0 {
		fmt.Fprintf(out, "  failures:     %s\n", badText(report.Failures))
	} else {
		fmt.Fprintf(out, "  failures:     %d\n", report.Failures)
	}

	if len(report.Results) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPLAINT\tOUTCOME\tLEVEL\tTARGET\tHOURS LEFT\tREASON")
	fmt.Fprintln(w, "---------\t-------\t-----\t------\t----------\t------")
	for _, r := range report.Results {
		target := "-"
		if r.EscalatedTo != nil {
			target = *r.EscalatedTo
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.1f\t%s\n",
			r.ComplaintID, outcomeText(r.Outcome), r.Level, target, r.HoursRemaining, r.Reason)
	}
	w.Flush()
}

func levelCounts(report *models.ScanReport) string {
	if report.Escalated == 0 {
		return "0"
	}
	levels := make([]int, 0, len(report.EscalatedByLevel))
	for level := range report.EscalatedByLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	s := fmt.Sprintf("%d (", report.Escalated)
	for i, level := range levels {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("L%d: %d", level, report.EscalatedByLevel[level])
	}
	return s + ")"
}

func outcomeText(o models.EscalationOutcome) string {
	switch o {
	case models.OutcomeEscalated, models.OutcomeFailed:
		return badText(string(o))
	case models.OutcomeOverdue, models.OutcomeWarning, models.OutcomeConflict:
		return warnText(string(o))
	}
	return okText(string(o))
}
