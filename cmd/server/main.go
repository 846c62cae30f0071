package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/EmaRG1/user-manager/internal/bootstrap"
	"github.com/EmaRG1/user-manager/internal/config"
	internalgrpc "github.com/EmaRG1/user-manager/internal/grpc"
	internalhttp "github.com/EmaRG1/user-manager/internal/http"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := bootstrap.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed, err := bootstrap.LoadSeed(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed load failed")
	}
	codec := bootstrap.NewCodec(cfg, log)
	services := bootstrap.NewServices(cfg, mockdb.New(seed), codec, service.ContextTokens, log)

	server := internalhttp.NewServer(cfg, services, codec, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer, err := internalgrpc.NewServer(cfg.ServiceAuthToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("grpc init failed")
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen error")
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("grpc server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	grpcServer.GracefulStop()
}
