package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"thumbcache/internal/logging"
	"thumbcache/internal/startup"
)

// options are the flags shared by every subcommand.
type options struct {
	envFile string
	verbose bool
	size    int
	scale   float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "thumbctl",
		Short: "Warm, inspect and maintain a thumbcache cache",
		Long: `thumbctl runs the thumbnail pipeline in-process against the same
configuration as the server (SOURCE_DIR or SOURCE_URL, CACHE_DIR, DISK_CACHE
and the worker variables), so it can warm or repair the persistent tier
while the server is stopped.`,
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.verbose {
				logging.SetLevel(logging.LevelDebug)
			} else {
				logging.SetLevel(logging.LevelWarn)
			}
			if opts.size < 1 {
				return fmt.Errorf("--size must be positive, got %d", opts.size)
			}
			if opts.scale <= 0 {
				return fmt.Errorf("--scale must be positive, got %g", opts.scale)
			}
			return startup.LoadEnvFile(opts.envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "environment file to load before reading configuration")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.IntVar(&opts.size, "size", 256, "thumbnail edge in points")
	flags.Float64Var(&opts.scale, "scale", 1, "display scale")

	root.SetVersionTemplate(fmt.Sprintf(
		"thumbctl %s (%s, %s/%s, %s)\n",
		startup.Version, startup.Commit, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		newWarmCmd(opts),
		newGetCmd(opts),
		newInvalidateCmd(opts),
		newStatsCmd(opts),
		newPruneCmd(opts),
	)
	return root
}
