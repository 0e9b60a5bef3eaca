// Package main runs the StudyTrack backend HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/studytrack/backend/internal/app/runtime"
)

func main() {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := runtime.NewApplication(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		_ = a.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
		os.Exit(1)
	}
}
