package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"bookpay-be/internal/checksum"
	"bookpay-be/internal/config"
	"bookpay-be/internal/gateway"
	"bookpay-be/internal/handler"
	"bookpay-be/internal/logger"
	"bookpay-be/internal/metrics"
	"bookpay-be/internal/middleware"
	"bookpay-be/internal/payment"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OpenStore picks the transaction store from configuration. The default is
// the in-memory store; "postgres" opens a pooled connection and pings it.
func OpenStore(cfg *config.Config) (payment.Store, func(), error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return payment.NewMemoryStore(), func() {}, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return payment.NewRepository(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewRouter wires the HTTP surface around an already-built service.
func NewRouter(cfg *config.Config, svc *payment.Service) http.Handler {
	paymentHandler := handler.NewPaymentHandler(svc)
	txHandler := handler.NewTransactionHandler(svc)

	r := mux.NewRouter()
	r.NotFoundHandler = handler.NotFoundHandler()

	r.HandleFunc("/api/health", handler.HealthHandler).Methods("GET")

	r.HandleFunc("/api/phonepe/initiate", paymentHandler.Initiate).Methods("POST")
	r.HandleFunc("/api/phonepe/callback", paymentHandler.Callback).Methods("POST")
	r.HandleFunc("/api/phonepe/status/{transactionId}", paymentHandler.Status).Methods("POST")

	adminOnly := middleware.AdminAuth(cfg.AdminJWTSecret)
	r.Handle("/api/transactions", adminOnly(http.HandlerFunc(txHandler.List))).Methods("GET")
	r.Handle("/api/transactions/{transactionId}", adminOnly(http.HandlerFunc(txHandler.Get))).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var h http.Handler = r
	h = middleware.RateLimitMiddleware(h)
	h = middleware.CORS(cfg.FrontendURL)(h)
	h = metrics.Middleware(h)
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

// New builds the fully wired service and router from configuration.
func New(cfg *config.Config, store payment.Store) http.Handler {
	signer := checksum.NewSigner(cfg.SaltKey, cfg.SaltIndex)
	gate := gateway.NewClient(cfg.GatewayURL(), cfg.MerchantID, signer)
	svc := payment.NewService(store, gate, signer, payment.ServiceConfig{
		MerchantID:  cfg.MerchantID,
		FrontendURL: cfg.FrontendURL,
	})
	return NewRouter(cfg, svc)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg *config.Config, h http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
