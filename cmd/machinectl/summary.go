package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/report"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Compute the cross-date summary.",
		Long: `summary prints the factory totals per machine type and status. With
--write the Summary sheet in the store is rebuilt as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			write, _ := cmd.Flags().GetBool("write")
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var sum *core.Summary
			if write {
				sum, err = a.Service.RebuildSummary(cmd.Context())
			} else {
				sum, err = a.Service.ComputeSummary(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), sum)
			}
			printSummary(cmd, sum)
			return nil
		},
	}
	cmd.Flags().Bool("write", false, "Rebuild the Summary sheet in the store")
	cmd.Flags().Bool("json", false, "Print the summary as JSON")
	return cmd
}

// printSummary prints only rows with a non-zero total.
func printSummary(cmd *cobra.Command, sum *core.Summary) {
	out := cmd.OutOrStdout()
	if sum.Empty() {
		fmt.Fprintln(out, "No daily sheets found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "MACHINE TYPE\tSTATUS\t")
	for _, f := range sum.Factories {
		fmt.Fprintf(w, "%s OWNED\t%s RENT\t", f, f)
	}
	fmt.Fprintln(w, "TOTAL\t")

	for _, b := range sum.Blocks {
		for _, r := range b.Rows {
			if r.Total == 0 {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t", b.MachineType, r.Status)
			for _, ft := range r.Factories {
				fmt.Fprintf(w, "%g\t%g\t", ft.Owned, ft.Rent)
			}
			fmt.Fprintf(w, "%g\t\n", r.Total)
		}
	}
	fmt.Fprintf(w, "TOTAL\t\t")
	for _, ft := range sum.FactoryTotals {
		fmt.Fprintf(w, "%g\t%g\t", ft.Owned, ft.Rent)
	}
	fmt.Fprintf(w, "%g\t\n", sum.GrandTotal)
	w.Flush()

	fmt.Fprintf(out, "\n%d daily sheets", len(sum.Sheets))
	if n := len(sum.SkippedSheets); n > 0 {
		fmt.Fprintf(out, " (%d unreadable: %v)", n, sum.SkippedSheets)
	}
	fmt.Fprintln(out)
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the summary to a standalone .xlsx file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.Service.ComputeSummary(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.WriteSummaryXLSX(f, sum); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "machine_summary.xlsx", "Output file")
	return cmd
}
