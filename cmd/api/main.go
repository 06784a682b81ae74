package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"tokendrip/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases + runtime drivers).
// 3) Start the drivers and the HTTP server until SIGINT/SIGTERM.
func main() {
	log.Println("tokendrip api starting")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("tokendrip api stopped with error: %v", err)
	}
}
