package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/balu-property/damage-service/internal/api/http/handlers"
	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Damages        *handlers.DamagesHandler
	Offers         *handlers.OffersHandler
	Public         *handlers.PublicHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Get("/public/damages/:id", cfg.Public.Get)

	var (
		participants = auth.RequireRole(domain.RoleTenant, domain.RoleObjectOwner, domain.RolePropertyAdmin, domain.RoleJanitor, domain.RoleCompany)
		reporters    = auth.RequireRole(domain.RoleTenant, domain.RoleObjectOwner, domain.RolePropertyAdmin, domain.RoleJanitor)
		referencers  = auth.RequireRole(domain.RoleObjectOwner, domain.RolePropertyAdmin, domain.RoleCompany)
		raters       = auth.RequireRole(domain.RoleObjectOwner, domain.RolePropertyAdmin)
		companies    = auth.RequireRole(domain.RoleCompany)
		guests       = auth.RequireRole(domain.RoleGuest, domain.RoleCompany)
	)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	damages := api.Group("/damages")
	damages.Post("", reporters, cfg.Damages.Create)
	damages.Get("", participants, cfg.Damages.List)
	damages.Get("/:id", participants, cfg.Damages.Get)
	damages.Delete("/:id", reporters, cfg.Damages.Delete)
	damages.Post("/:id/status", participants, cfg.Damages.Transition)
	damages.Put("/:id/internal-reference", referencers, cfg.Damages.SetInternalReference)
	damages.Get("/:id/logs", participants, cfg.Damages.Logs)
	damages.Get("/:id/offers", participants, cfg.Offers.List)
	damages.Post("/:id/offers", companies, cfg.Offers.Create)
	damages.Post("/:id/requests", reporters, cfg.Offers.RequestOffer)
	damages.Post("/:id/rating", raters, cfg.Damages.Rate)
	damages.Post("/:id/share", participants, cfg.Damages.Share)

	offers := api.Group("/offers")
	offers.Post("/:id/accept", reporters, cfg.Offers.Accept)
	offers.Post("/:id/reject", reporters, cfg.Offers.Reject)

	api.Post("/companies/damage-requests/register", companies, cfg.Offers.RegisterRequest)
	api.Post("/guest/damage-requests/verify", guests, cfg.Offers.VerifyGuest)
}
