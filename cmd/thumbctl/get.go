package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thumbcache/internal/codec"
	"thumbcache/internal/mediatypes"
)

func newGetCmd(opts *options) *cobra.Command {
	var (
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Load one thumbnail and write it to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(opts, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			req, err := ws.request(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			img, err := ws.pipeline.Fetch(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.CacheKey, err)
			}
			data, err := codec.Encode(img, ws.config.Quality)
			if err != nil {
				return fmt.Errorf("encode %s: %w", req.CacheKey, err)
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = outputName(req.Source, opts.size, mediatypes.Sniff(data))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			b := img.Bounds()
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%dx%d, %s)\n", output, b.Dx(), b.Dy(), formatBytes(int64(len(data))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file ("-" for stdout; default <name>_<size>.<ext>)`)
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}

// outputName derives a file name in the working directory for a thumbnail
// of source.
func outputName(source string, size int, format mediatypes.Format) string {
	base := path.Base(source)
	base = strings.TrimSuffix(base, path.Ext(base))
	ext := "jpg"
	if format == mediatypes.FormatPNG {
		ext = "png"
	}
	return fmt.Sprintf("%s_%d.%s", base, size, ext)
}
