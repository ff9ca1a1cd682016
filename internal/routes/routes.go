package routes

import (
	"shiplink/internal/auth"
	"shiplink/internal/config"
	"shiplink/internal/models"
	"shiplink/internal/modules/bookings"
	"shiplink/internal/modules/journeys"
	"shiplink/internal/modules/users"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Setup mounts every route on the echo instance. Search and profiles are
// public; everything that mutates state requires a token, with role gates
// on carrier- and sender-only surfaces.
func Setup(e *echo.Echo, cfg *config.Config, userHandler *users.Handler, journeyHandler *journeys.Handler, bookingHandler *bookings.Handler) {
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	api := e.Group("/api")

	// Public surface.
	api.POST("/auth/register", userHandler.Register)
	api.POST("/auth/login", userHandler.Login)
	api.GET("/auth/google/login", userHandler.GoogleLogin)
	api.GET("/auth/google/callback", userHandler.GoogleCallback)
	api.GET("/users/:id", userHandler.GetProfile)
	api.GET("/users/:id/reviews", userHandler.ListReviews)
	api.GET("/journeys/search", journeyHandler.Search)

	// Authenticated surface.
	authed := api.Group("", auth.Middleware(cfg.JWTSecret))
	authed.POST("/users/:id/reviews", userHandler.PostReview)
	authed.GET("/packages/:id", bookingHandler.GetPackage)
	authed.POST("/packages/:id/cancel", bookingHandler.Cancel)

	// Carrier-only surface.
	carrier := authed.Group("", auth.RequireRole(models.RoleCarrier))
	carrier.POST("/vehicles", journeyHandler.CreateVehicle)
	carrier.GET("/vehicles", journeyHandler.ListVehicles)
	carrier.PUT("/vehicles/:id", journeyHandler.UpdateVehicle)
	carrier.POST("/journeys", journeyHandler.CreateJourney)
	carrier.GET("/journeys/mine", journeyHandler.ListMine)
	carrier.DELETE("/journeys/:id", journeyHandler.Retire)
	carrier.POST("/journeys/:id/depart", bookingHandler.Depart)
	carrier.POST("/packages/:id/approve", bookingHandler.Approve)
	carrier.POST("/packages/:id/deliver", bookingHandler.Deliver)

	// Sender-only surface.
	sender := authed.Group("", auth.RequireRole(models.RoleSender))
	sender.POST("/packages", bookingHandler.CreatePackage)
	sender.GET("/packages/mine", bookingHandler.ListMyPackages)
}
