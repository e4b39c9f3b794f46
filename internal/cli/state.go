package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/ledger"
)

var flagStage string

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect batch checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, optionally only those written by one stage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := checkpoint.NewFileStore(cfg.CheckpointDir())
		if err != nil {
			return fail(cmd, err)
		}

		var keys []checkpoint.Key
		if flagStage != "" {
			suffix, perr := checkpoint.ParseSuffix(flagStage)
			if perr != nil {
				return perr
			}
			keys, err = store.List(cmd.Context(), suffix)
		} else {
			keys, err = store.ListAll(cmd.Context())
		}
		if err != nil {
			return fail(cmd, err)
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No checkpoints.")
			return nil
		}
		for _, k := range keys {
			recs, err := store.Load(cmd.Context(), k)
			if err != nil {
				fmt.Fprintf(out, "%-48s  unreadable: %v\n", k.Name(), err)
				continue
			}
			size, age := "", ""
			if info, err := os.Stat(store.Path(k)); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
				age = humanize.Time(info.ModTime())
			}
			fmt.Fprintf(out, "%-48s  %-15s  %3d docs  %8s  %s  %s\n",
				k.Name(), k.Suffix.Stage(), len(recs), size, age, statusSummary(recs))
		}
		return nil
	},
}

// statusSummary renders the status histogram in pipeline order.
func statusSummary(recs []document.Record) string {
	counts := document.CountByStatus(recs)
	var parts []string
	for _, s := range document.Statuses() {
		order := []document.Status{s}
		if f := s.Failure(); f != s {
			order = append(order, f)
		}
		for _, st := range order {
			if n := counts[st]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", st, n))
			}
		}
	}
	return strings.Join(parts, " ")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or reset the processed-documents ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every document the ledger knows about",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(l ledger.Ledger) error {
			entries, err := l.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Ledger is empty.")
				return nil
			}
			for _, e := range entries {
				state := "in progress"
				if e.Completed {
					state = "published " + humanize.Time(e.CompletedAt)
				}
				fmt.Fprintf(out, "%-40s  read %-16s  %-24s  %s\n",
					e.Path, humanize.Time(e.LastRead), state, strings.Join(e.Stages, ","))
			}
			return nil
		})
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset <path>",
	Short: "Forget a document so the next run processes it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(l ledger.Ledger) error {
			if err := l.Reset(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, ledger.ErrNotFound) {
					return fmt.Errorf("%s is not in the ledger", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", args[0])
			return nil
		})
	},
}

func withLedger(cmd *cobra.Command, fn func(ledger.Ledger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := ledger.OpenSQLite(cmd.Context(), cfg.LedgerFile())
	if err != nil {
		return fail(cmd, fmt.Errorf("opening ledger: %w", err))
	}
	defer l.Close()
	if err := fn(l); err != nil {
		return fail(cmd, err)
	}
	return nil
}

func init() {
	checkpointsListCmd.Flags().StringVar(&flagStage, "stage", "", "Only checkpoints written by this stage (read, optimized, ..., published)")
	checkpointsCmd.AddCommand(checkpointsListCmd)

	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
}
