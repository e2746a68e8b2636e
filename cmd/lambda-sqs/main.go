//go:build lambda

package main

import (
	"os"

	"optcache/internal/api"
	"optcache/internal/backends"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err != nil {
		log.Info("The .env file not found.")
	}

	snaps, err := backends.SnapshotBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize snapshot store: %v", err)
	}
	if snaps == nil {
		log.Fatal("The revalidation lambda needs a snapshot backend")
	}

	handler := &api.RevalidationHandler{Snaps: snaps}

	// Start Lambda runtime
	lambda.Start(handler.HandleSQSEvent)
}
