package main

import (
	"context"
	"log"

	"orderledger/internal/app"
)

func main() {
	application, err := app.NewApplication(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer application.Shutdown()

	if err := application.Run(); err != nil {
		log.Fatalf("application exited with error: %v", err)
	}
}
