package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidmarceau/groupline-backend/api/controllers"
	"github.com/davidmarceau/groupline-backend/api/middleware"
	"github.com/davidmarceau/groupline-backend/internal/auth"
	"github.com/davidmarceau/groupline-backend/internal/groups"
	"github.com/davidmarceau/groupline-backend/internal/invitations"
	"github.com/davidmarceau/groupline-backend/internal/memberships"
	"github.com/davidmarceau/groupline-backend/pkg/auth/session"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
	"github.com/davidmarceau/groupline-backend/pkg/redis"
)

// RouterParams bundles the router's dependencies.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	RedisClient    *redis.Client
	SessionChecker session.AccessSessionChecker
	MetricsReg     prometheus.Gatherer

	AuthService       auth.Service
	GroupService      groups.Service
	MembershipService memberships.Service
	InvitationService invitations.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// typed-nil *redis.Client must not leak into the interface params
	var redisPinger redis.Pinger
	if p.RedisClient != nil {
		redisPinger = p.RedisClient
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, redisPinger))
	})

	if p.MetricsReg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsReg, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.RedisClient, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.RedisClient, logg)).Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
			r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
		})
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
	})

	r.Route("/api/v1/groups", func(r chi.Router) {
		// browsing is open to anonymous callers; visibility scoping hides
		// what they may not see
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, p.SessionChecker, logg))
			r.Get("/", controllers.GroupList(p.GroupService, logg))
			r.Get("/{groupId}", controllers.GroupGet(p.GroupService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

			r.Post("/", controllers.GroupCreate(p.GroupService, logg))
			r.Patch("/{groupId}", controllers.GroupUpdate(p.GroupService, logg))
			r.Delete("/{groupId}", controllers.GroupDelete(p.GroupService, logg))
			r.Post("/{groupId}/transfer", controllers.GroupTransferOwnership(p.GroupService, logg))

			r.Post("/{groupId}/join", controllers.MembershipJoin(p.MembershipService, logg))
			r.Get("/{groupId}/members", controllers.MembershipListByGroup(p.MembershipService, logg))
			r.Delete("/{groupId}/members/me", controllers.MembershipLeave(p.MembershipService, logg))

			r.Post("/{groupId}/invitations", controllers.InvitationCreate(p.InvitationService, logg))
			r.Get("/{groupId}/invitations", controllers.InvitationListByGroup(p.InvitationService, logg))
		})
	})

	r.Route("/api/v1/memberships", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Patch("/{membershipId}/status", controllers.MembershipSetStatus(p.MembershipService, logg))
		r.Patch("/{membershipId}/role", controllers.MembershipSetRole(p.MembershipService, logg))
	})

	r.Route("/api/v1/invitations", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Post("/{token}/respond", controllers.InvitationRespond(p.InvitationService, logg))
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Get("/memberships", controllers.MembershipListMine(p.MembershipService, logg))
		r.Get("/invitations", controllers.InvitationListMine(p.InvitationService, logg))
	})

	return r
}
