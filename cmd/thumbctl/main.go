package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"thumbcache/internal/codec"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	codec.ShutdownVips()
	if err != nil {
		os.Exit(1)
	}
}
