package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xelth-com/dmrelay/internal/config"
	"github.com/xelth-com/dmrelay/internal/ephemeral"
	"github.com/xelth-com/dmrelay/internal/handlers"
	"github.com/xelth-com/dmrelay/internal/presence"
	"github.com/xelth-com/dmrelay/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// 2. Logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.NodeEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// 3. Wire the relay core
	registry := presence.NewRegistry()
	flags := ephemeral.NewStore()
	hub := websocket.NewHub(registry, flags)
	go hub.Run()

	// 4. HTTP router
	router := handlers.NewRouter(cfg, hub, registry)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("origin", cfg.ClientURL).Msg("relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 5. Graceful shutdown. Presence and ephemeral flags live in
	// process memory only; clients reconnect and re-register.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
