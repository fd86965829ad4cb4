package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/f4ntasma/codex/internal/api/http/handlers"
	"github.com/f4ntasma/codex/internal/authz"
	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/session"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Showcase   *handlers.ShowcaseHandler
	Resolver   *session.Resolver
	Metrics    *observability.Metrics
	CookieName string
}

// RegisterRoutes wires HTTP routes. The resolver runs once per request;
// every protected group layers a guard on the resolved principal.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(authz.ResolvePrincipal(cfg.Resolver, cfg.CookieName))

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/federated/start", cfg.Auth.FederatedStart)
	authGroup.Get("/federated/callback", cfg.Auth.FederatedCallback)
	authGroup.Post("/otp/request", cfg.Auth.OtpRequest)
	authGroup.Post("/otp/verify", cfg.Auth.OtpVerify)
	// The one endpoint subjects with an unfinalized role may reach.
	authGroup.Post("/role", authz.RequirePending(cfg.Metrics), cfg.Auth.SelectRole)
	authGroup.Post("/renew", authz.RequirePending(cfg.Metrics), cfg.Auth.Renew)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.Auth.Me)

	// Protected boundary for the (out-of-scope) showcase features: each
	// operation declares its required role set and the guard is the
	// only gate in front of it.
	app.Get("/students",
		authz.RequireRoles(cfg.Metrics, domain.RoleStudent),
		cfg.Showcase.Area("students"))
	app.Get("/proyectos",
		authz.RequireRoles(cfg.Metrics, domain.RoleStudent, domain.RoleCorporate),
		cfg.Showcase.Area("proyectos"))
	app.Get("/admin",
		authz.RequireRoles(cfg.Metrics, domain.RoleAdmin),
		cfg.Showcase.Area("admin"))
}
