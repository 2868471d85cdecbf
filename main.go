package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartselect/shortlist/internal/cli"
	"github.com/smartselect/shortlist/internal/client"
	"github.com/smartselect/shortlist/internal/tracer"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load structured config from .env / process environment
	cfg, err := client.LoadConfig(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logx.Init(logx.LoggerOpts{
		Environment: cfg.Env(),
		FilePath:    cfg.LogFile,
	})

	shutdown := tracer.Init(ctx, cfg.Tracing)

	err = cli.Execute(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(flushCtx); serr != nil {
		logx.Warn().Err(serr).Msg("failed to flush traces")
	}
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
