package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"tokendrip/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the pool, scheduler and settlement drivers without HTTP.
func main() {
	log.Println("tokendrip worker starting")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("tokendrip worker stopped with error: %v", err)
	}
}
