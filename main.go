// Package main provides the entry point of the segment backoffice service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/segment-backoffice/app/handlers"
	"github.com/amirphl/segment-backoffice/app/middleware"
	"github.com/amirphl/segment-backoffice/app/router"
	"github.com/amirphl/segment-backoffice/app/services"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logSink, closeLog := initializeLogging(cfg.Logging)
	defer closeLog()

	log.Printf("Starting segment backoffice %s (%s, commit %s)...",
		cfg.Deployment.Version, cfg.Deployment.Environment, cfg.Deployment.CommitHash)

	app, err := initializeApplication(cfg, logSink)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Close backing services after in-flight requests finished
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout, a rotating file or
// both. The returned writer is shared with the HTTP access log.
func initializeLogging(cfg config.LoggingConfig) (io.Writer, func()) {
	log.SetFlags(log.LstdFlags | log.LUTC)

	if cfg.Output == "stdout" || cfg.FilePath == "" {
		log.SetOutput(os.Stdout)
		return os.Stdout, func() {}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotating
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotating)
	}
	log.SetOutput(out)

	return out, func() {
		if err := rotating.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
}

// initializeApplication wires the upstream client, the optional cache and
// database, the flows and the router
func initializeApplication(cfg *config.ProductionConfig, logSink io.Writer) (*Application, error) {
	app := &Application{config: cfg}

	var db *gorm.DB
	var auditRepo repository.AuditLogRepository
	if cfg.Database.Enabled {
		var err error
		db, err = initializeDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		app.stopFuncs = append(app.stopFuncs, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		auditRepo = repository.NewAuditLogRepository(db)
	} else {
		log.Println("Database disabled; audit log is not recorded")
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, func() { _ = rc.Close() })
	} else {
		log.Println("Cache disabled; drafts are kept in memory and setup locking is per instance")
	}

	tokenService, err := services.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	client := services.NewBackofficeClient(cfg.Upstream)

	tagFlow := businessflow.NewTagFlow(client, rc, auditRepo, cfg)
	segmentFlow := businessflow.NewSegmentFlow(client, rc, auditRepo, cfg)
	userFlow := businessflow.NewUserFlow(client, auditRepo, cfg)
	auditFlow := businessflow.NewAuditFlow(auditRepo)

	timeout := cfg.Server.RequestTimeout
	h := router.Handlers{
		Tags:     handlers.NewTagHandler(tagFlow, timeout),
		Segments: handlers.NewSegmentHandler(segmentFlow, timeout),
		Users:    handlers.NewUserHandler(userFlow, timeout),
		Audit:    handlers.NewAuditHandler(auditFlow, timeout),
	}

	app.router = router.NewFiberRouter(cfg, h, middleware.NewAuthMiddleware(tokenService), router.Dependencies{
		Redis:     rc,
		DB:        db,
		AccessLog: logSink,
	})

	log.Printf("Upstream %s (prefix %s)", cfg.Upstream.UpstreamURL(), cfg.Upstream.Prefix)
	return app, nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
			return nil, fmt.Errorf("failed to migrate audit log: %w", err)
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}
