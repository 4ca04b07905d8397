package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bookpay-be/internal/config"
	"bookpay-be/internal/logger"
	"bookpay-be/internal/server"

	"go.uber.org/zap"
)

// Seams for tests.
var (
	openStoreFunc = server.OpenStore
	runServerFunc = server.Run
)

func run(ctx context.Context) error {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	store, closeStore, err := openStoreFunc(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	router := server.New(cfg, store)

	logger.L().Info("PhonePe backend server running",
		zap.String("port", cfg.AppPort),
		zap.String("env", cfg.AppEnv),
		zap.String("merchantId", cfg.MerchantID),
		zap.String("frontendUrl", cfg.FrontendURL),
	)

	return runServerFunc(ctx, cfg, router)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && err != http.ErrServerClosed {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}
