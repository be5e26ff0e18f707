package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/config"
	"apotekku/backend/internal/httpapi"
	"apotekku/backend/internal/logging"
	"apotekku/backend/internal/report"
	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/store/memory"
	pgstore "apotekku/backend/internal/store/postgres"
	sqlitestore "apotekku/backend/internal/store/sqlite"
)

func main() {
	envErr := config.LoadDotEnv()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		if errors.Is(envErr, fs.ErrNotExist) {
			logger.Debug("no .env file, using process environment")
		} else {
			logger.WithError(envErr).Warn("failed to read .env file")
		}
	}
	if err := validateSecurityConfig(cfg); err != nil {
		logger.WithError(err).Fatal("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	case cfg.SQLitePath != "":
		db, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).WithField("path", cfg.SQLitePath).Fatal("sqlite unavailable")
		}
		repo = db
		closers = append(closers, db.Close)
		logger.WithField("path", cfg.SQLitePath).Info("repository: sqlite")
	default:
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	cartTTL := time.Duration(cfg.CartTTLMinutes) * time.Minute
	var (
		reportCache cache.ReportCache = cache.NoopReportCache{}
		carts       cache.CartStore   = cache.NewMemoryCartStore(cartTTL)
		locker      cache.Locker      = cache.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisReports := cache.NewRedisReportCache(client)
		if err := redisReports.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using in-process cache and carts")
			_ = client.Close()
		} else {
			reportCache = redisReports
			carts = cache.NewRedisCartStore(client, cartTTL)
			locker = cache.NewRedisLocker(client)
			closers = append(closers, client.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: in-process")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Timezone).Warn("unknown timezone, reporting in UTC")
		loc = time.UTC
	}

	reports := report.NewEngine(repo, reportCache, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second, loc)
	svc := service.New(repo, reports, carts, locker, logger)
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Address()).Info("pharmacy backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Warn("close error")
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects non-numeric PINs, repeated digits, straight
// runs such as 234567 and a short list of common choices.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must contain digits only")
		}
	}

	common := map[string]bool{
		"121212": true, "112233": true, "123123": true, "010101": true, "147258": true,
	}
	if common[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
