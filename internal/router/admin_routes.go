package router

import (
	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/handler"
	"github.com/proyecto-sophia/cra-backend/internal/middleware"
	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// RegisterAdmin registers catalog management, user management, the
// inventory attention queue and the dashboard.  User management is
// admin-only; the rest is shared with personal, who run the desk.
func RegisterAdmin(e *echo.Echo, books *handler.BookHandler, resources *handler.ResourceHandler, users *handler.UserHandler, inventory *handler.InventoryHandler, dashboard *handler.DashboardHandler, jwtSecret string) {
	admin := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolAdmin),
	)
	admin.POST("/users", users.Create)
	admin.GET("/users", users.List)
	admin.GET("/users/:id", users.Get)
	admin.PUT("/users/:id", users.Update)
	admin.DELETE("/users/:id", users.Delete)
	admin.POST("/users/:id/pardon", users.Pardon)

	staff := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolAdmin, model.RolPersonal),
	)
	staff.POST("/books", books.Create)
	staff.GET("/books", books.List)
	staff.GET("/books/:id", books.Get)
	staff.PUT("/books/:id", books.Update)
	staff.POST("/books/:id/exemplars", books.AddExemplars)
	staff.DELETE("/books/:id", books.Delete)

	staff.POST("/resources", resources.Create)
	staff.GET("/resources", resources.List)
	staff.GET("/resources/:id", resources.Get)
	staff.PUT("/resources/:id", resources.Update)
	staff.POST("/resources/:id/instances", resources.AddInstances)
	staff.DELETE("/resources/:id", resources.Delete)

	staff.GET("/inventory/attention", inventory.Attention)
	staff.POST("/inventory/flag", inventory.Flag)
	staff.POST("/inventory/repair", inventory.Repair)
	staff.DELETE("/inventory/items", inventory.Retire)

	staff.GET("/dashboard/stats", dashboard.Stats)
}
