package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-auth/migrations"
	"github.com/tendant/simple-auth/pkg/authflow"
	authapi "github.com/tendant/simple-auth/pkg/authflow/api"
	"github.com/tendant/simple-auth/pkg/config"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/notice"
	"github.com/tendant/simple-auth/pkg/notification"
	"github.com/tendant/simple-auth/pkg/ratelimit"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Log.NewLogger())

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err = dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User, "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.App.RunMigrations {
			if err := migrations.Up(ctx, pool); err != nil {
				slog.Error("Failed to apply migrations", "error", err)
				os.Exit(1)
			}
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(cfg.Redis.ToOptions())
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
	}

	userConfig := user.RepositoryConfig{}
	storeConfig := token.StoreConfig{
		KeyPrefix:        cfg.Redis.KeyPrefix,
		ExpiredRetention: cfg.Token.ExpiredRetention,
		ConfirmationTTL:  cfg.Token.ConfirmationTTL,
	}
	if pool != nil {
		userConfig.DB = pool
		storeConfig.DB = pool
	}
	if redisClient != nil {
		storeConfig.Redis = redisClient
	}

	users, err := user.NewRepository(cfg.App.PersistenceType, userConfig)
	if err != nil {
		slog.Error("Failed to create user repository", "type", cfg.App.PersistenceType, "error", err)
		os.Exit(1)
	}

	tokens, confirmations, err := token.NewStores(cfg.TokenStoreType(), storeConfig)
	if err != nil {
		slog.Error("Failed to create token stores", "type", cfg.TokenStoreType(), "error", err)
		os.Exit(1)
	}
	issuer := token.NewIssuer(tokens,
		token.WithVerificationTTL(cfg.Token.VerificationTTL),
		token.WithPasswordResetTTL(cfg.Token.PasswordResetTTL),
		token.WithTwoFactorTTL(cfg.Token.TwoFactorTTL),
	)

	notificationManager, err := notification.NewNotificationManager(notification.WithSMTP(cfg.Email.ToSMTPConfig()))
	if err != nil {
		slog.Error("Failed to create notification manager", "error", err)
		os.Exit(1)
	}
	if err := notice.RegisterTemplates(notificationManager); err != nil {
		slog.Error("Failed to register notice templates", "error", err)
		os.Exit(1)
	}
	notices, err := notice.NewService(notificationManager, cfg.App.BaseURL)
	if err != nil {
		slog.Error("Failed to create notice service", "base_url", cfg.App.BaseURL, "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sessions := session.NewManager(users, confirmations,
		session.NewJwtIssuer(cfg.Jwt.Secret, cfg.Jwt.Issuer, cfg.Jwt.Audience),
		session.WithTTL(cfg.Jwt.SessionTTL),
	)

	svc := authflow.NewService(authflow.Dependencies{
		Users:         users,
		Tokens:        tokens,
		Confirmations: confirmations,
		Issuer:        issuer,
		Hasher:        cfg.Password.NewHasher(),
		Notifier:      notices,
		Sessions:      sessions,
	},
		authflow.WithMetrics(m),
		authflow.WithDefaultRedirect(cfg.App.DefaultLoginRedirect),
	)

	var handleOpts []authapi.Option
	if cfg.RateLimit.Enabled {
		var limiter ratelimit.Limiter
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Redis.KeyPrefix, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		} else {
			memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
			go memLimiter.Run(ctx)
			limiter = memLimiter
		}
		handleOpts = append(handleOpts, authapi.WithRateLimit(limiter,
			ratelimit.WithMetrics(m),
			ratelimit.WithRetryAfter(cfg.RateLimit.Window),
			ratelimit.WithTrustedProxy(cfg.RateLimit.TrustProxy),
		))
	}
	handle := authapi.NewHandle(svc, sessions, session.NewCookieSetter(cfg.App.CookieName, cfg.App.CookieSecure), handleOpts...)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Handle("/metrics", m.Handler())
	server.R.Mount("/api", authapi.Handler(handle))

	slog.Info("Auth server ready", "base_url", cfg.App.BaseURL, "persistence", cfg.App.PersistenceType, "token_store", cfg.TokenStoreType())
	server.Run()
}
