package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finledger/auth-server/internal/config"
	"github.com/finledger/auth-server/server"
	"github.com/finledger/auth-server/store"
	"github.com/finledger/auth-server/token"
)

const appName = "finledger-auth"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load() // optional .env for local development
	cfg := config.MustLoad()
	setupLogging(cfg)
	displayAppname(appName)

	tokens, err := token.New([]byte(cfg.JWTSecret), []byte(cfg.JWTRefreshSecret),
		token.WithExpiry(cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry),
	)
	if err != nil {
		return fmt.Errorf("token.New: %w", err)
	}

	gate := token.NewEdgeVerifier([]byte(cfg.JWTSecret), []byte(cfg.JWTRefreshSecret))

	registry := store.NewRegistry(store.Config{
		AdminURL:            cfg.AdminDatabaseURL(),
		TenantURLTemplate:   cfg.DatabaseTenantURL,
		DevFallbackTenantID: cfg.CurrentTenantID,
		DevFallbackEnabled:  cfg.TenantDevFallback,
	})
	defer registry.Close()

	srv, err := server.New(cfg, registry, tokens, gate, log.Logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Address(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
