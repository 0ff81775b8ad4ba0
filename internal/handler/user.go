package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/config"
	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// UserHandler implements the admin user-management endpoints, including
// the sanction pardon.
type UserHandler struct {
	Users *repository.UserRepo
	Cfg   config.Config
	Log   *zap.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *repository.UserRepo, cfg config.Config, log *zap.Logger) *UserHandler {
	if users == nil || log == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Cfg: cfg, Log: log}
}

// Create handles POST /v1/users.  Admins may create accounts with any
// role, unlike open registration.
func (h *UserHandler) Create(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	u := model.User{
		PrimerNombre:   req.PrimerNombre,
		PrimerApellido: req.PrimerApellido,
		Rut:            req.Rut,
		Correo:         req.Correo,
		Rol:            req.Rol,
		Curso:          req.Curso,
	}
	id, err := h.Users.Create(c.Request().Context(), &u, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "rut or correo already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	u.ID = id
	return c.JSON(http.StatusCreated, userView(u))
}

// List handles GET /v1/users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, userView(u))
}

// Update handles PUT /v1/users/:id.  An empty password keeps the current
// one.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	// Password is optional on update; pad it so validate() passes and
	// blank it back afterwards.
	password := req.Password
	if password == "" {
		req.Password = "--unchanged--"
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	u := model.User{
		ID:             id,
		PrimerNombre:   req.PrimerNombre,
		PrimerApellido: req.PrimerApellido,
		Rut:            req.Rut,
		Correo:         req.Correo,
		Rol:            req.Rol,
		Curso:          req.Curso,
	}
	if err := h.Users.Update(c.Request().Context(), &u, password, h.Cfg.BcryptCost); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrUserExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "rut or correo already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

// Delete handles DELETE /v1/users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// Pardon handles POST /v1/users/:id/pardon, lifting an active sanction.
func (h *UserHandler) Pardon(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Users.ClearSancion(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.Log.Info("sanction pardoned", zap.Uint64("usuario_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "sanction lifted"})
}
