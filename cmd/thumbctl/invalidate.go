package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInvalidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <path>...",
		Short: "Remove thumbnails from the cache",
		Long: `invalidate drops the thumbnail of each path at --size and --scale from the
cache so the next request regenerates it from the original.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(opts, true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var firstErr error
			for _, arg := range args {
				req, err := ws.request(arg)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: %v\n", arg, err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				ws.pipeline.InvalidateCache(req.CacheKey)
				fmt.Fprintf(out, "Invalidated %s\n", req.CacheKey)
			}

			// Close runs the queued removals before returning.
			ws.Close()
			return firstErr
		},
	}
}
