package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the attendance ledger as CSV",
		Long: `Write every recorded scan as CSV, the same file the dashboard offers.

Examples:
  attendctl report --out attendance_report.csv
  attendctl report > ledger.csv`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}
	cmd.Flags().String("out", "", "Output file (stdout when empty)")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")

	ctx := context.Background()
	svc, db, err := openService(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	n, err := svc.WriteReport(ctx, w)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", n, out)
	}
	return nil
}
