// Package app wires configuration, storage, the change feed and the HTTP
// routes into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"etalase/internal/changefeed"
	"etalase/internal/config"
	"etalase/internal/handlers"
	"etalase/internal/middleware"
	"etalase/internal/models"
	"etalase/internal/repositories"
	"etalase/internal/services"
	"etalase/internal/upload"
	"etalase/internal/views"
	"etalase/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Repositories groups the storage backends selected by DB_DRIVER.
type Repositories struct {
	Products repositories.ProductRepository
	Users    repositories.UserRepository
	// DB is nil for the memory driver.
	DB *gorm.DB
}

// Close releases the database connection, if any.
func (r Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewDBLogger reports slow queries and errors to w. A lookup that finds no
// row is an expected outcome for the repositories and is not logged.
func NewDBLogger(w io.Writer) gormlogger.Interface {
	return gormlogger.New(log.New(w, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// OpenDatabase connects with the given driver and migrates the schema.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	return openDatabase(driver, dsn, NewDBLogger(os.Stdout))
}

func openDatabase(driver, dsn string, dbLogger gormlogger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.AdminUser{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}

// OpenRepositories builds the repositories for cfg.DBDriver.
func OpenRepositories(cfg config.Config) (Repositories, error) {
	if cfg.DBDriver == config.DriverMemory {
		return Repositories{
			Products: repositories.NewMemoryProductRepository(),
			Users:    repositories.NewMemoryUserRepository(),
		}, nil
	}

	db, err := OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return Repositories{}, err
	}
	return Repositories{
		Products: repositories.NewGORMProductRepository(db),
		Users:    repositories.NewGORMUserRepository(db),
		DB:       db,
	}, nil
}

// App is the assembled server.
type App struct {
	cfg     config.Config
	server  *fiber.App
	repos   Repositories
	broker  *changefeed.Broker
	mq      *rabbitmq.Client
	resync  *changefeed.Resync
	catalog *handlers.CatalogHandler

	Store *services.ProductStore
	Auth  *services.AuthService
}

// New builds the application from cfg. When RABBITMQ_URL is set, change
// events travel through the broker so every instance sees every write.
func New(cfg config.Config) (*App, error) {
	repos, err := OpenRepositories(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, repos: repos}

	a.broker = changefeed.NewBroker(changefeed.DefaultQueueSize)
	var publisher changefeed.Publisher = a.broker
	if cfg.RabbitMQURL != "" {
		a.mq, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		relay := changefeed.NewRelay(a.mq, a.broker)
		if err := relay.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to start change event relay: %w", err)
		}
		publisher = relay
	}

	a.resync, err = changefeed.NewResync(cfg.CatalogResyncSpec, models.Product{}.TableName(), publisher)
	if err != nil {
		a.close()
		return nil, err
	}

	a.Store = services.NewProductStore(repos.Products, publisher, a.broker)
	a.Auth = services.NewAuthService(repos.Users, cfg.JWTSecret, cfg.SessionTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	uploader := upload.NewCloudinaryClient(upload.Config{
		CloudName:    cfg.CloudinaryCloudName,
		UploadPreset: cfg.CloudinaryUploadPreset,
		BaseURL:      cfg.CloudinaryBaseURL,
		Timeout:      cfg.UploadTimeout,
	})
	forms := services.NewAdminFormController(a.Store, uploader)
	catalog := services.NewCatalog(a.Store, services.CatalogConfig{
		WhatsAppPhone:  cfg.WhatsAppPhone,
		CurrencySymbol: cfg.CurrencySymbol,
	})

	layout := views.Layout{StoreName: cfg.StoreName}
	a.catalog = handlers.NewCatalogHandler(a.Store, catalog, layout, cfg.PublicURL)
	authHandler := handlers.NewAuthHandler(a.Auth, layout)
	adminHandler := handlers.NewAdminHandler(a.Store, forms, layout, cfg.CurrencySymbol)

	a.server = fiber.New(fiber.Config{
		AppName:   cfg.StoreName,
		BodyLimit: cfg.UploadMaxBytes,
	})
	a.server.Use(recover.New())
	a.server.Use(logger.New())

	a.server.Get("/health", a.handleHealth)

	a.catalog.RegisterPageRoutes(a.server)
	authHandler.RegisterPageRoutes(a.server)
	adminHandler.RegisterPageRoutes(a.server.Group("/admin", middleware.PageSessionRequired(a.Auth)))

	apiV1 := a.server.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	a.catalog.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1.Group("/admin", middleware.APISessionRequired(a.Auth)))

	return a, nil
}

// Server exposes the Fiber app, mainly for app.Test in tests.
func (a *App) Server() *fiber.App {
	return a.server
}

// Listen starts the resync job and serves HTTP until Shutdown.
func (a *App) Listen() error {
	a.resync.Start()
	log.Printf("Starting server on port %s", a.cfg.AppPort)
	return a.server.Listen(a.cfg.AppPort)
}

// Shutdown closes the event streams first so open connections can drain,
// then stops the server and releases every backend.
func (a *App) Shutdown() error {
	a.catalog.Close()
	err := a.server.Shutdown()
	if err != nil {
		err = fmt.Errorf("error during Fiber shutdown: %w", err)
	}
	a.resync.Stop()
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	if a.broker != nil {
		a.broker.Close()
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.repos.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	database := "memory"
	if a.repos.DB != nil {
		database = "connected"
		sqlDB, err := a.repos.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			log.Printf("Health check database ping failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": err.Error(),
			})
		}
	}

	broker := "disabled"
	if a.mq != nil {
		broker = "connected"
	}
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"time":        time.Now().Format(time.RFC3339),
		"database":    database,
		"rabbitmq":    broker,
		"subscribers": a.broker.Len(),
	})
}
