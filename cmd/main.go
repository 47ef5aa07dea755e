package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/handlers"
	"github.com/adjuface/facegate/internal/services"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.ParseEnvBool("LOG_PRETTY", false) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	svc, err := services.InitializeServices()
	if err != nil {
		log.Fatal().Err(err).Msg("Service initialization failed")
	}

	h := handlers.New(
		svc.GetAccountStore(),
		svc.GetCatalog(),
		svc.GetSwapService(),
		svc.GetDrawService(),
		config.GetQuotaConfig(),
	)

	server := &http.Server{
		Addr:    ":" + config.GetServerPort(),
		Handler: h.Router(),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if err := svc.Close(); err != nil {
		log.Error().Err(err).Msg("Store close error")
	}
}
