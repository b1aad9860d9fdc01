package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "carhub/docs" // swagger docs

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"carhub/internal/auth"
	"carhub/internal/cache"
	"carhub/internal/config"
	"carhub/internal/db"
	"carhub/internal/logger"
	"carhub/internal/mail"
	"carhub/internal/metrics"
	"carhub/internal/ratelimit"
	"carhub/internal/repository"
	"carhub/internal/router"
	"carhub/internal/service"
)

// @title CarHub API
// @version 1.0
// @description Vehicle inventory API with category management and emailed-password accounts.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.Log.Level, Service: "carhub"})
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatal("metrics init", zap.Error(err))
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, db.DefaultOptions())
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}
	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Fatal("reset database", zap.Error(err))
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}
	store := repository.NewStore(gormDB)

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		// Login throttling fails open while Redis is away.
		log.Warn("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	limiter := ratelimit.NewFixedWindow(cacheClient, "login:", cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow)

	passwords := auth.NewPasswordManager(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers, auth.WithHashObserver(m))
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	sender := mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.User, cfg.SMTP.Pass, log.Named("smtp"))
	sender.TLSMode = cfg.SMTP.TLSMode
	mailer := mail.NewWelcomeMailer(sender, cfg.SMTP.WelcomeTitle, cfg.SMTP.FrontendURL)

	authService := service.NewAuthService(store.Repositories().Users, passwords, tokens, mailer,
		service.WithPasswordPolicy(cfg.PasswordPolicy()),
		service.WithLoginLimiter(limiter),
		service.WithLoginRecorder(m),
		service.WithAuthLogger(log.Named("auth")),
		service.WithAuthStorageTimeout(cfg.StorageTimeout),
	)
	catalogService := service.NewCatalogService(store,
		service.WithOrphanRecorder(m),
		service.WithCatalogLogger(log.Named("catalog")),
		service.WithCatalogStorageTimeout(cfg.StorageTimeout),
	)

	if _, err := catalogService.RepairOrphans(context.Background()); err != nil {
		log.Error("orphan sweep", zap.Error(err))
	}

	e := echo.New()
	router.Register(e, router.Deps{
		Log:      log,
		Metrics:  m,
		Gatherer: reg,
		Auth:     authService,
		Catalog:  catalogService,
	})

	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg.SwaggerHost, cfg.ServerPort)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// swaggerURL accepts a host with or without scheme.
func swaggerURL(host, port string) string {
	switch {
	case host == "":
		return "http://localhost:" + port + "/swagger/index.html"
	case len(host) >= 7 && host[:7] == "http://", len(host) >= 8 && host[:8] == "https://":
		return host + "/swagger/index.html"
	default:
		return "http://" + host + "/swagger/index.html"
	}
}
