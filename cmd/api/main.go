package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/davidmarceau/groupline-backend/api/routes"
	"github.com/davidmarceau/groupline-backend/internal/auth"
	"github.com/davidmarceau/groupline-backend/internal/groups"
	"github.com/davidmarceau/groupline-backend/internal/invitations"
	"github.com/davidmarceau/groupline-backend/internal/memberships"
	"github.com/davidmarceau/groupline-backend/internal/policy"
	"github.com/davidmarceau/groupline-backend/internal/users"
	"github.com/davidmarceau/groupline-backend/pkg/auth/session"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
	"github.com/davidmarceau/groupline-backend/pkg/metrics"
	"github.com/davidmarceau/groupline-backend/pkg/migrate"
	"github.com/davidmarceau/groupline-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	policyMetrics := metrics.NewPolicyMetrics(registry)
	evaluator := policy.NewEvaluator(policyMetrics)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	groupRepo := groups.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())

	groupService, err := groups.NewService(groups.ServiceParams{
		Repo:          groupRepo,
		Tx:            dbClient,
		Evaluator:     evaluator,
		PolicyMetrics: policyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(memberships.ServiceParams{
		Repo:          membershipRepo,
		Groups:        groupRepo,
		Tx:            dbClient,
		Evaluator:     evaluator,
		EngineConfig:  cfg.Engine,
		PolicyMetrics: policyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	invitationService, err := invitations.NewService(invitations.ServiceParams{
		Repo:          invitations.NewRepository(dbClient.DB()),
		Groups:        groupRepo,
		Memberships:   membershipRepo,
		Tx:            dbClient,
		Evaluator:     evaluator,
		EngineConfig:  cfg.Engine,
		PolicyMetrics: policyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:            cfg,
			Logger:            logg,
			DBPinger:          dbClient,
			RedisClient:       redisClient,
			SessionChecker:    sessionManager,
			MetricsReg:        registry,
			AuthService:       authService,
			GroupService:      groupService,
			MembershipService: membershipService,
			InvitationService: invitationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
