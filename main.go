package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatali-fataliyev/migasto/api"
	"github.com/fatali-fataliyev/migasto/internal/auth"
	"github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/fatali-fataliyev/migasto/internal/config"
	"github.com/fatali-fataliyev/migasto/internal/rates"
	"github.com/fatali-fataliyev/migasto/internal/storage"
	"github.com/fatali-fataliyev/migasto/logging"
	"golang.org/x/sync/errgroup"
)

type appStorage interface {
	budget.Storage
	auth.UserStorage
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.LogLevel, cfg.AppEnv, cfg.LogDir); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logging.Logger.Info("application starting...")

	store, closeStore, err := openStorage(cfg)
	if err != nil {
		logging.Logger.Errorf("failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = auth.RandomSecret()
		if err != nil {
			logging.Logger.Errorf("failed to generate token secret: %v", err)
			os.Exit(1)
		}
		logging.Logger.Warn("JWT_SECRET is not set, using a random secret: tokens will not survive a restart")
	}

	bt := budget.NewBudgetTracker(store)
	gate := auth.NewGate(store, auth.NewTokenManager(secret, cfg.TokenTTL), auth.PasswordHasher{})
	rateProvider := rates.WithCache(rates.NewClient(cfg.RatesAPIURL, cfg.RatesTimeout), cfg.RatesCacheTTL)

	handler := api.NewRouter(api.NewApi(bt, gate, rateProvider), cfg.CORSAllowedOrigins)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Logger.Infof("Starting server on port: %s (storage: %s)", cfg.Port, bt.StorageType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Logger.Info("shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Logger.Errorf("server stopped with error: %v", err)
		closeStore()
		os.Exit(1)
	}
	logging.Logger.Info("server stopped gracefully")
}

func openStorage(cfg *config.Config) (appStorage, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		s := storage.NewSQLStorage(db, storage.DialectSQLite)
		return s, func() { s.Close() }, nil
	case config.BackendMySQL:
		db, err := storage.OpenMySQL(cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		s := storage.NewSQLStorage(db, storage.DialectMySQL)
		return s, func() { s.Close() }, nil
	default:
		logging.Logger.Info("using in-memory storage, data is lost on restart")
		return storage.NewInMemoryStorage(), func() {}, nil
	}
}
