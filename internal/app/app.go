package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hdfs-drive/internal/config"
	"hdfs-drive/internal/database"
	"hdfs-drive/internal/handler"
	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/middleware"
	"hdfs-drive/internal/repository"
	"hdfs-drive/internal/router"
	"hdfs-drive/internal/service"
	"hdfs-drive/internal/trash"
	"hdfs-drive/internal/vfs"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	shareRepo := repository.NewShareRepository(pool)
	oplogRepo := repository.NewOpLogRepository(pool)
	slog.Info("database ready")

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if cfg.SeedAdminPassword != "" {
		if err := authService.SeedAdmin(context.Background(), cfg.SeedAdminUser, cfg.SeedAdminPassword); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed admin user: %w", err)
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService)

	connector := hdfs.NewWebHDFS(cfg.NamenodeURL)
	resolver := vfs.NewResolver(cfg.UsersRoot)
	executor := vfs.NewExecutor(connector, resolver, cfg.AdminUser, slog.Default())

	// A corrupt trash snapshot is an operator problem; refusing to start
	// beats silently purging or resurrecting files.
	ledger, err := trash.NewLedger(cfg.TrashIndexFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open trash ledger: %w", err)
	}

	classes := vfs.DefaultClasses()
	if cfg.TypeFormatsFile != "" {
		classes, err = vfs.LoadFormatsFile(cfg.TypeFormatsFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load type formats file: %w", err)
		}
	}

	oplogService := service.NewOpLogService(oplogRepo, slog.Default())
	driveService := service.NewDriveService(
		connector,
		resolver,
		executor,
		ledger,
		classes,
		cfg.TrashRetention,
		cfg.AdminUser,
		oplogService,
		slog.Default(),
	)
	thumbnailService := service.NewThumbnailService(driveService, cfg.ThumbnailRoot)
	shareService := service.NewShareService(shareRepo, connector, resolver, cfg.AdminUser)

	driveHandler := handler.NewDriveHandler(driveService, thumbnailService, cfg.MaxUploadSize)
	shareHandler := handler.NewShareHandler(shareService)
	adminHandler := handler.NewAdminHandler(authService, oplogService)

	appRouter := router.New(cfg, authMiddleware, authHandler, driveHandler, shareHandler, adminHandler, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Health(ctx)
	})

	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	scheduler := trash.NewScheduler(
		ledger,
		cfg.TrashRetention,
		cfg.PurgeInitialDelay,
		cfg.PurgeInterval,
		driveService.AdminDelete,
		slog.Default(),
	)
	go scheduler.Run(purgeCtx)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			purgeCancel,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
