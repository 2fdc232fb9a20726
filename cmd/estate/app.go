package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/config"
	"github.com/xxxsen/estate/internal/db"
	"github.com/xxxsen/estate/internal/filestore"
	"github.com/xxxsen/estate/internal/geocode"
	"github.com/xxxsen/estate/internal/handler"
	"github.com/xxxsen/estate/internal/job"
	"github.com/xxxsen/estate/internal/middleware"
	"github.com/xxxsen/estate/internal/repo"
	"github.com/xxxsen/estate/internal/schedule"
	"github.com/xxxsen/estate/internal/service"
	"github.com/xxxsen/estate/internal/tokenstore"
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	blacklist tokenstore.Blacklist
	scheduler *schedule.CronScheduler
	deps      handler.RouterDeps
}

func newApp(cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a := &app{cfg: cfg, db: conn}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg
	blacklist, err := tokenstore.New(cfg.TokenBlacklist, cfg.Redis)
	if err != nil {
		return fmt.Errorf("init token blacklist: %w", err)
	}
	a.blacklist = blacklist

	var geocoder geocode.Provider
	if cfg.Properties.EnableGeocode && len(cfg.Geocode.Providers) > 0 {
		geocoder, err = geocode.New(cfg.Geocode)
		if err != nil {
			return fmt.Errorf("init geocoder: %w", err)
		}
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	userRepo := repo.NewUserRepo(a.db)
	codeRepo := repo.NewEmailVerificationRepo(a.db)
	propertyRepo := repo.NewPropertyRepo(a.db)
	imageRepo := repo.NewPropertyImageRepo(a.db)

	mailSender := service.NewEmailSender(cfg.Mail)
	verifyService := service.NewEmailVerificationService(codeRepo, userRepo, mailSender, service.VerificationOptions{
		ExpireMinutes:   cfg.Verification.ExpireMinutes,
		CooldownSeconds: cfg.Verification.CooldownSeconds,
		MaxAttempts:     cfg.Verification.MaxAttempts,
	})
	authService := service.NewAuthService(
		userRepo,
		verifyService,
		blacklist,
		[]byte(cfg.JWTSecret),
		time.Hour*time.Duration(cfg.JWTTTLHours),
		cfg.Properties.EnableUserRegister,
	)
	propertyService := service.NewPropertyService(propertyRepo, imageRepo, geocoder)

	a.deps = handler.RouterDeps{
		Auth:             handler.NewAuthHandler(authService, verifyService),
		Features:         handler.NewFeaturesHandler(cfg.Properties),
		Listings:         handler.NewListingHandler(propertyService),
		Files:            handler.NewFileHandler(store, propertyService, int64(cfg.MaxUploadMB)*1024*1024),
		JWTSecret:        []byte(cfg.JWTSecret),
		Blacklist:        blacklist,
		SendCodeInterval: time.Duration(cfg.SendCodeIntervalSeconds) * time.Second,
	}

	a.scheduler = schedule.NewCronScheduler()
	if err := a.scheduler.AddJob(job.NewVerificationCodeCleanupJob(verifyService, 24*time.Hour), "0 * * * *"); err != nil {
		return err
	}
	if geocoder != nil {
		if err := a.scheduler.AddJob(job.NewGeocodeBackfillJob(propertyService, 50), "*/15 * * * *"); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Serve() error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("token_blacklist", cfg.TokenBlacklist.Type),
		zap.Int("geocode_providers", len(cfg.Geocode.Providers)),
	)

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, a.deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logutil.GetLogger(context.Background()).Info("server stopping...")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (a *app) Close() {
	if closer, ok := a.blacklist.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close token blacklist failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
