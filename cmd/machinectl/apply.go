package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [file|-]",
		Short: "Merge submissions from a JSON file into the record store.",
		Long: `apply reads one submission per line (JSON Lines) from a file, or from
stdin when the argument is "-" or missing. Blank lines are skipped. A rejected
line is reported and the rest continue unless --stop-on-error is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			stop, _ := cmd.Flags().GetBool("stop-on-error")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return applyLines(cmd, a.Service, in, stop)
		},
	}
	cmd.Flags().Bool("stop-on-error", false, "Abort at the first rejected submission")
	return cmd
}

func applyLines(cmd *cobra.Command, svc *core.Service, in io.Reader, stop bool) error {
	out := cmd.OutOrStdout()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	ctx := core.ContextWithChannel(cmd.Context(), "cli")

	var line, ok, failed int
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		ack, err := svc.ApplyJSON(ctx, bytes.Clone(raw))
		if err != nil {
			failed++
			fmt.Fprintf(out, "line %d: %s\n", line, core.FormatUserError(err))
			if core.IsValidationError(err) {
				fmt.Fprintf(out, "  %v\n", err)
			}
			if stop {
				return fmt.Errorf("stopped at line %d", line)
			}
			continue
		}
		ok++
		fmt.Fprintf(out, "line %d: %s (%d cells)\n", line, ack.Message, ack.CellsUpdated)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d applied, %d rejected\n", ok, failed)
	if failed > 0 {
		return fmt.Errorf("%d submissions rejected", failed)
	}
	return nil
}
