package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCmd(opts *options) *cobra.Command {
	var maxSize string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Trim the disk tier to a size budget",
		Long: `prune deletes least recently used thumbnails from the disk tier until it
holds at most --max-size of data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := parseByteSize(maxSize)
			if err != nil {
				return fmt.Errorf("--max-size: %w", err)
			}

			ws, err := openWorkspace(opts, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if ws.disk == nil {
				return errNoDiskTier
			}
			removed, err := ws.disk.Trim(limit)
			if err != nil {
				return fmt.Errorf("trim disk cache: %w", err)
			}

			stats, err := ws.disk.Stats()
			if err != nil {
				return fmt.Errorf("read disk cache stats: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries; %d remain (%s)\n", removed, stats.Entries, formatBytes(stats.Bytes))
			return nil
		},
	}

	cmd.Flags().StringVar(&maxSize, "max-size", "1GB", "size budget, e.g. 500MB or 2GB")
	return cmd
}
