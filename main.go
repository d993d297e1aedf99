package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"katalog/internal/config"
	"katalog/internal/handlers"
	"katalog/internal/logger"
	"katalog/internal/repositories"
	"katalog/internal/services"
	"katalog/internal/storage"
	"katalog/pkg/cache"
	"katalog/pkg/rabbitmq"
)

// App is the wired HTTP application and the resources it owns.
type App struct {
	Fiber   *fiber.App
	closers []func() error
}

// Close releases every resource opened by NewApp, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewApp wires the database, object store, optional cache and broker, the
// product service and the HTTP routes. ctx bounds the orphan consumer.
func NewApp(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*App, error) {
	a := &App{}
	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	db, err := openDatabase(cfg, zl)
	if err != nil {
		return fail(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		return fail(err)
	}

	gateway, closeGateway, err := newGateway(ctx, cfg.Storage)
	if err != nil {
		return fail(err)
	}
	if closeGateway != nil {
		a.closers = append(a.closers, closeGateway)
	}

	gormRepo := repositories.NewGORMProductRepository(db)
	var productRepo repositories.ProductRepository = gormRepo
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, redisClient.Close)
		productRepo = repositories.NewCachedProductRepository(gormRepo, redisClient, cfg.CacheTTL, zl)
		zl.Info("product listing cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}

	replaceOrder, err := services.ParseReplaceOrder(cfg.ReplaceOrder)
	if err != nil {
		return fail(err)
	}
	opts := []services.Option{
		services.WithLogger(zl),
		services.WithReplaceOrder(replaceOrder),
		services.WithUploadConcurrency(cfg.UploadConcurrency),
	}

	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.OrphanQueue}, zl)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, mqClient.Close)
		opts = append(opts, services.WithOrphanPublisher(mqClient))

		reconciler := services.NewOrphanReconciler(gateway, gormRepo, zl.Named("reconciler"))
		if err := mqClient.ConsumeOrphanEvents(ctx, reconciler.HandleMessage); err != nil {
			return fail(err)
		}
	}

	productService := services.NewProductService(productRepo, gateway, opts...)
	productHandler := handlers.NewProductHandler(productService, handlers.ProductHandlerConfig{
		MaxPageSize:    cfg.MaxPageSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, zl)

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadBytes)*handlers.MaxShowcaseFiles + 1<<20,
	})
	app.Use(fiberlogger.New())

	apiV1 := app.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"storage":  cfg.Storage.Driver,
			"database": cfg.DatabaseDriver,
		})
	})

	a.Fiber = app
	return a, nil
}

func openDatabase(cfg *config.Config, zl *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger.NewPrintfAdapter(zl.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newGateway builds the asset gateway for the configured driver. The returned
// closer is nil when the backend holds no resources.
func newGateway(ctx context.Context, cfg config.StorageConfig) (storage.AssetGateway, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryGateway(cfg.Bucket, cfg.Prefix, cfg.PublicURL), nil, nil
	case "minio":
		g, err := storage.NewMinioGateway(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			PublicURL: cfg.PublicURL,
		})
		return g, nil, err
	case "s3":
		g, err := storage.NewS3Gateway(ctx, storage.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
			Prefix:          cfg.Prefix,
			PublicURL:       cfg.PublicURL,
		})
		return g, nil, err
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		g, err := storage.NewGCSGateway(client, cfg.Bucket, cfg.Prefix, cfg.PublicURL)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return g, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize application", zap.Error(err))
	}

	zl.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("replace_order", cfg.ReplaceOrder),
	)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("shutting down server")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Error("error during Fiber shutdown", zap.Error(err))
	}
	cancel()
	if err := app.Close(); err != nil {
		zl.Error("error releasing resources", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
}
