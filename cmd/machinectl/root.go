package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/machinelog/internal/app"
	"github.com/JonMunkholm/machinelog/internal/config"
	"github.com/JonMunkholm/machinelog/internal/logging"
	"github.com/JonMunkholm/machinelog/internal/schema"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Store and lock settings come from the
// same environment variables as the server.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "machinectl",
		Short: "Maintain the machine status record store.",
		Long: `machinectl reads and writes the record store configured through the
environment (STORE_BACKEND, STORE_WORKBOOK_PATH, DATABASE_URL, ...).

An xlsx workbook is locked by whichever process opens it first, so stop a
server using the same workbook before running machinectl against it. The
sqlite and postgres stores can be shared; set LOCK_BACKEND=redis so a running
server and machinectl serialise writes to the same date sheet.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringP("loglevel", "l", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newStatusCmd(),
		newApplyCmd(),
		newSummaryCmd(),
		newExportCmd(),
		newSheetNameCmd(),
	)
	return root
}

// openApp loads configuration and assembles the service. The caller closes it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("loglevel")
	logging.Setup(level, cfg.Logging.Format)

	return app.New(cmd.Context(), cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the configured enumerations and a health report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Service.Status())
		},
	}
}

func newSheetNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheet-name <YYYY-MM-DD>",
		Short: "Print the daily sheet name a date maps to.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := schema.SheetName(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}
