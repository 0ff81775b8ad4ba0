package router

import (
	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/handler"
	"github.com/proyecto-sophia/cra-backend/internal/middleware"
	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// RegisterLending registers the loan and reservation endpoints.
//
// Desk operations (creating loans, returns, renewals, confirming and
// cancelling reservations, listing everything) are restricted to admin
// and personal.  Borrowers get the self-service subset: reserving an item,
// cancelling their own reservation, and listing what they hold.
func RegisterLending(e *echo.Echo, loans *handler.LoanHandler, reservations *handler.ReservationHandler, jwtSecret string) {
	desk := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolAdmin, model.RolPersonal),
	)
	desk.POST("/loans", loans.Create)
	desk.POST("/loans/:id/return", loans.Return)
	desk.PUT("/loans/:id/renew", loans.Renew)
	desk.GET("/loans", loans.ListAll)
	desk.POST("/reservations/:id/confirm", reservations.Confirm)
	desk.POST("/reservations/:id/cancel", reservations.Cancel)
	desk.GET("/reservations", reservations.ListPending)

	// Any authenticated user; ownership checks live in the handlers.
	me := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	me.POST("/reservations", reservations.Create)
	me.POST("/reservations/:id/cancel-mine", reservations.CancelMine)
	me.GET("/reservations/mine", reservations.Mine)
	me.GET("/loans/me", loans.Mine)
	me.GET("/loans/user/:id", loans.ListByUser)
}
