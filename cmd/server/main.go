package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/session"
)

const (
	exitOK      = 0
	exitConfig  = 2
	exitRuntime = 1
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until SIGINT or SIGTERM, returning the
// process exit code.
func run() (int, error) {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitConfig, fmt.Errorf("load .env: %w", err)
	}

	config, err := server.NewConfigFromEnv()
	if err != nil {
		return exitConfig, err
	}

	log, err := logging.New(config.LogLevel)
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	server.SetConfig(config)
	cfg := server.CurrentConfig()
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set; using an ephemeral signing key")
	}

	lobby := room.NewLobby(cfg.SubscriberBuffer)
	if err := server.SeedRooms(lobby, cfg.Rooms, log); err != nil {
		return exitConfig, err
	}

	hub := server.NewHub(lobby, session.NewLogReporter(log), log, cfg.SessionConfig())
	server.StartHub(hub, log)

	tokens := server.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	api := server.NewAPI(lobby, hub, tokens, log)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(api, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serveErr:
		_ = hub.Shutdown(cfg.ShutdownTimeout)
		if err != nil {
			return exitRuntime, fmt.Errorf("http server: %w", err)
		}
		return exitOK, nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	var shutdownErr error
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("hub shutdown: %w", err))
	}
	if shutdownErr != nil {
		return exitRuntime, shutdownErr
	}

	log.Info("server stopped")
	return exitOK, nil
}
