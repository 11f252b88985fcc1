package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"sol-relay/cmd"
)

func main() {
	// .env is optional; config falls back to real env vars and defaults
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
