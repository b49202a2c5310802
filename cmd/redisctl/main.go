package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dwsmith1983/redisctl/internal/commands"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/internal/telemetry"
)

var version = "dev"

// Exit codes distinguish failure classes so scripts can branch on them.
const (
	exitOK        = 0
	exitError     = 1
	exitFailed    = 3
	exitTimeout   = 4
	exitCancelled = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := telemetry.Init(ctx, endpoint, version)
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	root := commands.NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the unified error taxonomy onto the documented codes.
func exitCode(err error) int {
	switch operation.KindOf(err) {
	case operation.KindTimeout:
		return exitTimeout
	case operation.KindTaskFailed:
		return exitFailed
	case operation.KindCancelled:
		return exitCancelled
	default:
		return exitError
	}
}
