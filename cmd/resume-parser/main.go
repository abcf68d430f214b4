package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/server"
	"google.golang.org/grpc"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		common.NewLogger(common.LogConfig{}, os.Stderr).Error("config load failed", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build parsing stack", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	serveErr := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		srv, hs := server.NewGRPCServer(server.GRPCConfig{
			Parser:         stack.Processor,
			JWTSecret:      cfg.Server.JWTSecret,
			JWTIssuer:      cfg.Server.JWTIssuer,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			ParseTimeout:   cfg.Server.ParseTimeout,
			Logger:         logger,
		})
		grpcServer = srv
		defer hs.Shutdown()
		logger.Info("grpc.listen", "addr", cfg.Server.GRPCAddr)
		go func() {
			if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- err
			}
		}()
	}

	var httpShutdown func(context.Context) error
	if cfg.Server.HTTPAddr != "" {
		httpCfg := server.HTTPConfig{
			Parser:         stack.Processor,
			Exporter:       stack.Exporter,
			Readiness:      stack.Readiness(),
			JWTSecret:      cfg.Server.JWTSecret,
			JWTIssuer:      cfg.Server.JWTIssuer,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			ParseTimeout:   cfg.Server.ParseTimeout,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   cfg.Server.ParseTimeout + 30*time.Second,
			Logger:         logger,
		}
		if stack.Runs != nil {
			httpCfg.Runs = stack.Runs
		} else {
			httpCfg.Exporter = nil
		}
		app := server.NewHTTPApp(httpCfg)
		httpShutdown = app.ShutdownWithContext
		logger.Info("http.listen", "addr", cfg.Server.HTTPAddr)
		go func() {
			if err := app.Listen(cfg.Server.HTTPAddr); err != nil {
				serveErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		logger.Error("server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpShutdown != nil {
		if err := httpShutdown(shutdownCtx); err != nil {
			logger.Warn("http.shutdown_failed", "error", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("stopped")
}
