package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/logging"
)

var flagExpiredOnly bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the redaction result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached redaction results",
	Long: `Clear removes every cached redaction result. With --expired, only entries
past their TTL or produced by a different rule set are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sc, err := newScanner(cfg, logging.Discard())
		if err != nil {
			return fail(cmd, err)
		}
		c := sc.Cache
		if !c.Enabled() {
			if c, err = cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds); err != nil {
				return fail(cmd, fmt.Errorf("opening cache: %w", err))
			}
		}
		var n int
		if flagExpiredOnly {
			n, err = c.Prune(sc.Fingerprint())
		} else {
			n, err = c.Clear()
		}
		if err != nil {
			return fail(cmd, fmt.Errorf("clearing cache: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%s entries removed).\n", humanize.Comma(int64(n)))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sc, err := newScanner(cfg, logging.Discard())
		if err != nil {
			return fail(cmd, err)
		}
		out := cmd.OutOrStdout()
		if !sc.Cache.Enabled() {
			fmt.Fprintln(out, "Cache is disabled.")
			return nil
		}
		stats, err := sc.Cache.GetStats(sc.Fingerprint())
		if err != nil {
			return fail(cmd, fmt.Errorf("reading cache stats: %w", err))
		}
		fmt.Fprintf(out, "Directory: %s\n", stats.Dir)
		fmt.Fprintf(out, "Entries:   %s (%s expired, %s from other rule sets)\n",
			humanize.Comma(int64(stats.Entries)), humanize.Comma(int64(stats.Expired)), humanize.Comma(int64(stats.Stale)))
		fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
		fmt.Fprintf(out, "TTL:       %s\n", ttl(cfg.Cache.TTLSeconds))
		return nil
	},
}

func ttl(seconds int) string {
	if seconds <= 0 {
		return "none"
	}
	return fmt.Sprintf("%ds", seconds)
}

func init() {
	cacheClearCmd.Flags().BoolVar(&flagExpiredOnly, "expired", false, "Only remove expired and stale entries")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
