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

	"github.com/frahmantamala/access-control/api"
	"github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/auth"
	"github.com/frahmantamala/access-control/internal/catalog"
	catalogPostgres "github.com/frahmantamala/access-control/internal/catalog/postgres"
	"github.com/frahmantamala/access-control/internal/core/events"
	"github.com/frahmantamala/access-control/internal/mailer"
	"github.com/frahmantamala/access-control/internal/metrics"
	"github.com/frahmantamala/access-control/internal/ratelimit"
	"github.com/frahmantamala/access-control/internal/role"
	rolePostgres "github.com/frahmantamala/access-control/internal/role/postgres"
	"github.com/frahmantamala/access-control/internal/session"
	sessionPostgres "github.com/frahmantamala/access-control/internal/session/postgres"
	"github.com/frahmantamala/access-control/internal/tracing"
	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/frahmantamala/access-control/internal/transport/rest"
	"github.com/frahmantamala/access-control/internal/user"
	userPostgres "github.com/frahmantamala/access-control/internal/user/postgres"
	"github.com/frahmantamala/access-control/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	SQL     *sqlx.DB
	DB      *gorm.DB
	Redis   *redis.Client
	Bus     *events.EventBus
	Mailer  *mailer.Dispatcher
	Metrics *metrics.Metrics
	Handler http.Handler
	Logger  *slog.Logger

	shutdownTracing tracing.ShutdownFunc
}

func startHTTPServer() {
	ctx := context.Background()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Handler,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	deps.Close(shutdownCtx)

	lg.Info("server stopped")
}

// Close releases everything in reverse order of construction.
func (d *Dependencies) Close(ctx context.Context) {
	if err := d.Bus.Wait(ctx); err != nil {
		d.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if err := d.Mailer.Drain(ctx); err != nil {
		d.Logger.Warn("mail queue not drained at shutdown", "error", err)
	}
	d.Mailer.Shutdown()
	if err := d.shutdownTracing(ctx); err != nil {
		d.Logger.Error("tracing shutdown error", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.SQL.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)
	lg := logger.LoggerWrapper()

	if _, err := api.Load(ctx); err != nil {
		return nil, err
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		Endpoint:     cfg.Observability.Tracing.Endpoint,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Insecure:     cfg.Observability.Tracing.Insecure,
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	sqlDB, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config:          cfg,
		SQL:             sqlDB,
		DB:              gormDB,
		Bus:             events.NewEventBus(lg),
		Logger:          lg,
		shutdownTracing: shutdownTracing,
	}

	if cfg.Redis.Enabled {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	if cfg.Observability.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	deps.Mailer = mailer.NewDispatcher(mailer.Config{
		Workers:   cfg.Mail.Workers,
		QueueSize: cfg.Mail.QueueSize,
	}, newMailSender(cfg.Mail, lg), lg)
	deps.Mailer.Subscribe(deps.Bus)

	handler, err := buildHandler(ctx, deps)
	if err != nil {
		return nil, err
	}
	deps.Handler = handler
	return deps, nil
}

func buildHandler(ctx context.Context, deps *Dependencies) (http.Handler, error) {
	cfg, lg := deps.Config, deps.Logger

	userRepo := userPostgres.NewUserRepository(deps.DB)
	catalogService := catalog.NewService(catalogPostgres.NewCatalogRepository(deps.DB), lg)
	roleService := role.NewService(rolePostgres.NewRoleRepository(deps.DB), userRepo, catalogService, deps.Bus, lg)
	userService := user.NewService(userRepo, roleService, cfg.Security.BCryptCost, lg)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.TokenIssuer,
		cfg.Security.TokenAudience,
		cfg.Security.AccessTokenDuration,
	)
	issuer := auth.NewIssuer(roleService, catalogService, tokens, lg)

	var guardOpts []auth.GuardOption
	sessionOpts := []session.Option{
		session.WithLoginLimiter(newLimiter(deps, "login", cfg.RateLimit.LoginAttempts)),
		session.WithOTPLimiter(newLimiter(deps, "otp", cfg.RateLimit.OTPRequests)),
	}
	if deps.Metrics != nil {
		guardOpts = append(guardOpts, auth.WithDecisionObserver(deps.Metrics.ObserveDecision))
		sessionOpts = append(sessionOpts, session.WithEventRecorder(deps.Metrics.RecordAuthEvent))
	}
	if cfg.OAuth.Enabled {
		provider, err := session.NewOIDCProvider(ctx, session.OIDCConfig{
			IssuerURL:    cfg.OAuth.IssuerURL,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize oidc: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithExternalProvider(provider))
	}

	manager := session.NewManager(userRepo, sessionPostgres.NewOTPRepository(deps.SQL), issuer, deps.Bus, session.Config{
		RefreshTokenTTL: cfg.Security.RefreshTokenDuration,
		OTPTTL:          cfg.Security.OTPDuration,
		OTPLength:       cfg.Security.OTPLength,
		BCryptCost:      cfg.Security.BCryptCost,
		DefaultRoleIDs:  cfg.OAuth.DefaultRoleIDs,
	}, lg, sessionOpts...)

	checks := map[string]rest.Check{
		"postgres": deps.SQL.PingContext,
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	base := transport.NewBaseHandler(lg)
	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Catalog: catalog.NewHandler(base, catalogService),
		Role:    role.NewHandler(base, roleService),
		User:    user.NewHandler(base, userService),
		Session: session.NewHandler(base, manager, session.CookieConfig{
			Secure: cfg.Security.CookieSecure,
			Domain: cfg.Security.CookieDomain,
		}),
		Health: rest.NewHealthHandler(checks),
	}, rest.Options{
		Guard:          auth.NewGuard(tokens, lg, guardOpts...),
		Metrics:        deps.Metrics,
		MetricsPath:    cfg.Observability.Metrics.Path,
		OpenAPI:        api.Document(),
		AllowedOrigins: cfg.Server.Origins(),
		Logger:         lg,
	})

	if cfg.Observability.Tracing.Enabled {
		return otelhttp.NewHandler(router, cfg.Observability.Tracing.ServiceName), nil
	}
	return router, nil
}

// newLimiter shares counters through redis when it is configured and falls
// back to a per-process token bucket otherwise.
func newLimiter(deps *Dependencies, name string, limit int) ratelimit.Limiter {
	window := deps.Config.RateLimit.Window
	if deps.Redis != nil {
		return ratelimit.NewRedisLimiter(deps.Redis, "ratelimit:"+name, limit, window)
	}
	return ratelimit.NewLocalLimiter(limit, window)
}

func newMailSender(cfg internal.MailConfig, lg *slog.Logger) mailer.Sender {
	if cfg.Driver == "smtp" {
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return mailer.NewLogSender(lg)
}

// initDB opens the shared pgx pool used by sqlx and gorm alike.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
