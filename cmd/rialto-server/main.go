// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// rialto-server hosts player sessions: the gRPC gateway clients drive, the
// read-only admin surface, and the session registry that owns every live
// pipeline.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/rapidaai/rialto/internal/admin"
	"github.com/rapidaai/rialto/internal/config"
	"github.com/rapidaai/rialto/internal/player"
	"github.com/rapidaai/rialto/internal/rpc"
	"github.com/rapidaai/rialto/internal/session"
	"github.com/rapidaai/rialto/internal/sessionstore"
	"github.com/rapidaai/rialto/internal/webaudio"
	"github.com/rapidaai/rialto/pkg/commons"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("rialto: config: %v", err)
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	opts := []commons.Option{commons.WithLevel(level)}
	if cfg.LogFile != "" {
		opts = append(opts, commons.WithLogFile(cfg.LogFile))
	}
	logger, err := commons.NewApplicationLogger(opts...)
	if err != nil {
		log.Fatalf("rialto: logger: %v", err)
	}

	store, err := sessionstore.Open(cfg.SessionStoreDSN, logger)
	if err != nil {
		logger.Fatalf("session store: %v", err)
	}

	broker := rpc.NewBroker(logger)
	playerDeps := player.Deps{
		Logger: logger,
		Sink:   broker,
		Config: player.Config{
			NeedDataResendDefault:    cfg.NeedDataResendDefault,
			NeedDataResendLowLatency: cfg.NeedDataResendLowLatency,
			PositionReportInterval:   cfg.PositionReportInterval,
			FramesBelowPlaying:       cfg.FramesBelowPlaying,
			FramesPlaying:            cfg.FramesPlaying,
		},
	}
	webAudioDeps := webaudio.Deps{
		Logger: logger,
		Sink:   broker,
		Config: webaudio.Config{WriteTimeout: cfg.WebAudioWriteTimeout},
	}
	registry := session.NewRegistry(logger, store, playerDeps, webAudioDeps)

	gateway := rpc.NewGateway(logger, registry, broker)
	rpcServer := rpc.NewServer(logger, gateway)
	adminServer := admin.New(logger, registry)

	go func() {
		if err := rpcServer.Serve(cfg.GRPCAddress); err != nil {
			logger.Fatalf("rpc server: %v", err)
		}
	}()
	go func() {
		if err := adminServer.Run(cfg.AdminAddress); err != nil {
			logger.Fatalf("admin server: %v", err)
		}
	}()

	logger.Infow("rialto session server started",
		"service", cfg.ServiceName,
		"grpc", cfg.GRPCAddress,
		"admin", cfg.AdminAddress,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry.Close(shutdownCtx)
	rpcServer.Stop()
}
