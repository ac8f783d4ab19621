package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"thumbcache/internal/source"
	"thumbcache/internal/thumbnail"
)

func newWarmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [prefix]",
		Short: "Prefetch thumbnails for every image under SOURCE_DIR",
		Long: `warm walks SOURCE_DIR, optionally limited to a sub-path, and prefetches a
thumbnail for each image at --size and --scale so the disk tier is populated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(opts, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			prefix := ""
			if len(args) == 1 {
				prefix = strings.Trim(path.Clean("/"+args[0]), "/")
			}
			return runWarm(cmd, ws, prefix)
		},
	}
}

func runWarm(cmd *cobra.Command, ws *workspace, prefix string) error {
	dir, ok := ws.loader.(*source.Dir)
	if !ok {
		return fmt.Errorf("warm needs SOURCE_DIR; the configured source is not a directory")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	start := time.Now()

	var (
		wg       sync.WaitGroup
		queued   atomic.Int64
		finished atomic.Int64
	)
	done := thumbnail.PrefetchFunc(func(thumbnail.Request) {
		finished.Add(1)
		wg.Done()
	})

	stopProgress := startProgress(out, &queued, &finished)
	defer stopProgress()

	err := dir.Walk(ctx, func(rel string) error {
		if prefix != "" && rel != prefix && !strings.HasPrefix(rel, prefix+"/") {
			return nil
		}
		req, err := ws.request(rel)
		if err != nil {
			return nil
		}
		wg.Add(1)
		queued.Add(1)
		ws.pipeline.Prefetch(req, done)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir.Root(), err)
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	stopProgress()
	fmt.Fprintf(out, "Warmed %d images in %v\n", queued.Load(), time.Since(start).Round(time.Millisecond))
	return nil
}

// startProgress redraws a counter line while out is a terminal. The returned
// function stops it and is safe to call twice.
func startProgress(out io.Writer, queued, finished *atomic.Int64) func() {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}

	stop := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Fprintf(f, "\r  %d / %d", finished.Load(), queued.Load())
			case <-stop:
				fmt.Fprintf(f, "\r  %d / %d\n", finished.Load(), queued.Load())
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}
