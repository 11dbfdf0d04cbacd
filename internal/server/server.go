// Package server is the reference chat server the sync client talks to:
// a gin REST surface for bulk loads, a websocket fanout hub for the
// real-time protocol, and sqlite persistence underneath. Message bodies
// arrive and leave encrypted; the server treats them as opaque blobs.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Serve blocks, listening on addr (e.g. ":3000").
func Serve(addr, dbPath string) error {
	store, err := OpenStore(dbPath)
	if err != nil {
		return err
	}

	engine := gin.Default()
	router := NewRouter(store, NewHub())
	router.RegisterRoutes(engine)

	slog.Info("listening", "addr", addr, "db", dbPath)
	return engine.Run(addr)
}
