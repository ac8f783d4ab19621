package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"thumbcache/internal/cache"
)

// statsReport is the output of thumbctl stats.
type statsReport struct {
	CacheDir  string      `json:"cacheDir"`
	DiskCache string      `json:"diskCache"`
	Disk      cache.Stats `json:"disk"`
}

func newStatsCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report the size of the disk tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(opts, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if ws.disk == nil {
				return errNoDiskTier
			}
			stats, err := ws.disk.Stats()
			if err != nil {
				return fmt.Errorf("read disk cache stats: %w", err)
			}

			report := statsReport{
				CacheDir:  ws.config.CacheDir,
				DiskCache: ws.config.DiskCache,
				Disk:      stats,
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Cache directory:  %s\n", report.CacheDir)
			fmt.Fprintf(out, "  Disk tier:        %s\n", report.DiskCache)
			fmt.Fprintf(out, "  Entries:          %d\n", stats.Entries)
			fmt.Fprintf(out, "  Size:             %s\n", formatBytes(stats.Bytes))
			if stats.Entries > 0 {
				fmt.Fprintf(out, "  Average entry:    %s\n", formatBytes(stats.Bytes/int64(stats.Entries)))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
