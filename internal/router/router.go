// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/studio-class-booking/internal/handler"
	"github.com/iliyamo/studio-class-booking/internal/middleware"
	"github.com/iliyamo/studio-class-booking/internal/model"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Browse   *handler.BrowseHandler
	Booking  *handler.BookingHandler
	Waitlist *handler.WaitlistHandler
	Credits  *handler.CreditsHandler
	Admin    *handler.AdminHandler
}

// Register mounts all routes.  jwtSecret signs the access tokens and
// rateLimit, when non-nil, is applied to the whole /v1 surface.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	if rateLimit != nil {
		v1.Use(rateLimit)
	}

	// Auth: register/login/refresh need no session; logout accepts
	// either a bearer or a refresh token in the body.
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)

	// Public schedule browsing, no authentication.
	v1.GET("/sessions", h.Browse.ListSessions)
	v1.GET("/sessions/:id", h.Browse.GetSession)
	v1.GET("/class-types", h.Browse.ListClassTypes)
	v1.GET("/instructors", h.Browse.ListInstructors)

	// Accepting an invitation authenticates by token alone: the link
	// lands in an email and the client may have no session open.
	v1.POST("/waitlist/accept", h.Waitlist.Accept)

	// Payment confirmations arrive from the provider, not a browser
	// session; the reference is the shared secret.
	v1.POST("/purchases/confirm", h.Credits.ConfirmPurchase)

	// Client surface, any authenticated role.
	client := v1.Group("")
	client.Use(middleware.JWTAuth(jwtSecret))
	client.Use(middleware.RequireRole(model.RoleClient, model.RoleAdmin))
	client.GET("/me", h.Auth.Me)
	client.GET("/me/wallet", h.Credits.MyWallet)
	client.GET("/me/reservations", h.Booking.MyReservations)
	client.GET("/me/waitlist", h.Waitlist.MyWaitlist)
	client.POST("/sessions/:id/book", h.Booking.Book)
	client.DELETE("/sessions/:id/book", h.Booking.Cancel)
	client.POST("/sessions/:id/waitlist", h.Waitlist.Join)
	client.DELETE("/sessions/:id/waitlist", h.Waitlist.Leave)
	client.POST("/purchases", h.Credits.CreatePurchase)

	// Admin surface.
	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/class-types", h.Admin.CreateClassType)
	admin.POST("/instructors", h.Admin.CreateInstructor)
	admin.POST("/sessions", h.Admin.CreateSession)
	admin.DELETE("/sessions/:id", h.Admin.CancelSession)
	admin.POST("/sessions/:id/attendance", h.Admin.MarkAttendance)
	admin.POST("/credits/adjust", h.Admin.AdjustCredits)
}
