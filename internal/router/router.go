package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/handler"
	"github.com/proyecto-sophia/cra-backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; the profile endpoint requires a valid
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes the refresh token in the body, no JWT required.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/auth/me", a.Me)
	// Shorter alias used by the frontend.
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalog browse endpoints.
// Guests can search the catalog and see availability counts before
// visiting the library.
func RegisterPublic(e *echo.Echo, p *handler.PublicCatalogHandler) {
	e.GET("/v1/public/books", p.ListBooks)
	e.GET("/v1/public/resources", p.ListResources)
	e.GET("/v1/public/search", p.Search)
}
