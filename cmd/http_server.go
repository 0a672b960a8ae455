package cmd

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

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/auth"
	"github.com/frahmantamala/payment-portal/internal/core/events"
	"github.com/frahmantamala/payment-portal/internal/report"
	reportPostgres "github.com/frahmantamala/payment-portal/internal/report/postgres"
	"github.com/frahmantamala/payment-portal/internal/request"
	requestPostgres "github.com/frahmantamala/payment-portal/internal/request/postgres"
	"github.com/frahmantamala/payment-portal/internal/transport/rest"
	"github.com/frahmantamala/payment-portal/internal/transport/swagger"
	"github.com/frahmantamala/payment-portal/internal/user"
	userPostgres "github.com/frahmantamala/payment-portal/internal/user/postgres"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the payment request API",
	Long:  `Start the HTTP server backing the portal: auth, requests, users and reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	EventBus *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	// let in-flight notifications finish before the pool goes away
	deps.EventBus.Wait()
	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("Database close error", "error", err)
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	users := userPostgres.NewUserRepository(deps.Gorm)
	hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost)
	requestRepo := requestPostgres.NewRequestRepository(deps.Gorm)
	userService := user.NewService(users, hasher, lg).WithAssignments(requestRepo)

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration)
	authService := auth.NewService(users, tokens, hasher, userService, lg)

	request.NewEventHandler(lg).RegisterEventHandlers(deps.EventBus)
	requestService := request.NewService(requestRepo, userService, deps.EventBus, lg)

	reportService := report.NewService(reportPostgres.NewReportRepository(deps.DB), requestService, lg)

	doc, err := swagger.LoadSpec(context.Background(), cfg.Server.OpenAPIPath)
	if err != nil {
		return err
	}
	validator, err := swagger.RequestValidator(doc, lg)
	if err != nil {
		return err
	}

	opts := rest.Options{
		DB:             deps.DB.DB,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Validator:      validator,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.MetricsPath = cfg.Observability.Metrics.Path
	}

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:    auth.NewHandler(authService),
		User:    user.NewHandler(userService),
		Request: request.NewHandler(requestService),
		Report:  report.NewHandler(reportService),
	}, opts, lg)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config := mustLoadConfig()
	if config.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db, config.Env)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config:   config,
		Logger:   lg,
		DB:       db,
		Gorm:     gdb,
		EventBus: events.NewEventBus(lg),
		Router:   chi.NewRouter(),
	}, nil
}

// initDB opens the shared pgx pool. gorm and sqlx both sit on top of it.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

func initGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormlogger.Warn
	if env == "production" {
		level = gormlogger.Error
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
}
