package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"anonchat/internal/logging"
	"anonchat/internal/server"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// Missing .env is fine; env vars still apply.
	_ = godotenv.Load()
	logging.Setup()

	addr := getEnv("ADDR", ":3000")
	dbPath := getEnv("DB_PATH", "anonchat.db")

	if err := server.Serve(addr, dbPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
