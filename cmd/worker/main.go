package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"concord/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Relay the outbox and refresh stored decisions until SIGINT/SIGTERM;
//    SIGHUP reloads voter weights.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("concord worker starting")
	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx, bootstrap.NotifyReload(ctx)); err != nil {
		log.Printf("concord worker stopped with error: %v", err)
	}
}
