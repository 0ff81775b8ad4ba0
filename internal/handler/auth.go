package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/config"
	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
	"github.com/proyecto-sophia/cra-backend/internal/utils"
)

// AuthHandler implements registration, login and the refresh-token flow.
// Refresh tokens are opaque random strings; only their SHA-256 hash is
// stored.  On every /refresh call the presented token is revoked and a new
// pair is issued (rotation), so a replayed token fails validation.
type AuthHandler struct {
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Cfg    config.Config
}

// NewAuthHandler constructs an AuthHandler.  All dependencies must be
// non-nil.
func NewAuthHandler(users *repository.UserRepo, tokens *repository.TokenRepo, cfg config.Config) *AuthHandler {
	if users == nil || tokens == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{Users: users, Tokens: tokens, Cfg: cfg}
}

type registerRequest struct {
	PrimerNombre   string  `json:"primerNombre"`
	PrimerApellido string  `json:"primerApellido"`
	Rut            string  `json:"rut"`
	Correo         string  `json:"correo"`
	Password       string  `json:"password"`
	Rol            string  `json:"rol"`
	Curso          *string `json:"curso"`
}

func (r *registerRequest) validate() error {
	r.PrimerNombre = strings.TrimSpace(r.PrimerNombre)
	r.PrimerApellido = strings.TrimSpace(r.PrimerApellido)
	r.Rut = strings.TrimSpace(r.Rut)
	r.Correo = strings.TrimSpace(strings.ToLower(r.Correo))
	switch {
	case r.PrimerNombre == "" || r.PrimerApellido == "":
		return errors.New("primerNombre and primerApellido are required")
	case r.Rut == "":
		return errors.New("rut is required")
	case r.Correo == "" || !strings.Contains(r.Correo, "@"):
		return errors.New("a valid correo is required")
	case len(r.Password) < 8:
		return errors.New("password must be at least 8 characters")
	case !model.ValidRole(r.Rol):
		return errors.New("unknown rol")
	case r.Rol == model.RolAlumno && (r.Curso == nil || strings.TrimSpace(*r.Curso) == ""):
		return errors.New("curso is required for alumnos")
	}
	return nil
}

// userView strips credentials from a user for API responses.
func userView(u model.User) echo.Map {
	v := echo.Map{
		"id":             u.ID,
		"primerNombre":   u.PrimerNombre,
		"primerApellido": u.PrimerApellido,
		"rut":            u.Rut,
		"correo":         u.Correo,
		"rol":            u.Rol,
	}
	if u.Curso != nil {
		v["curso"] = *u.Curso
	}
	if u.SancionHasta != nil {
		v["sancionHasta"] = *u.SancionHasta
	}
	return v
}

// Register handles POST /v1/auth/register.  Open registration only creates
// visitante accounts; staff roles are assigned through the admin user API.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Rol == "" {
		req.Rol = model.RolVisitante
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Rol != model.RolVisitante {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only visitante accounts may self-register"})
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

// Login handles POST /v1/auth/login.  On success it returns an access
// token plus a refresh token the client must store.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Correo   string `json:"correo"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Correo = strings.TrimSpace(strings.ToLower(req.Correo))
	if req.Correo == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "correo and password are required"})
	}
	ctx := c.Request().Context()
	u, err := h.Users.GetByCorreo(ctx, req.Correo)
	if err != nil {
		// Same response for unknown user and bad password.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issueTokens(c, u)
}

// Refresh handles POST /v1/auth/refresh.  It rotates the refresh token:
// the presented token is revoked and a brand-new access/refresh pair is
// issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}
	ctx := c.Request().Context()
	hash := utils.HashRefreshRaw(req.RefreshToken)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	return h.issueTokens(c, u)
}

// RefreshAccess handles POST /v1/auth/refresh-access.  It issues a new
// access token for a still-valid refresh token without rotating it, for
// clients that only need to extend a session.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}
	ctx := c.Request().Context()
	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(req.RefreshToken))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Rol, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sign token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access.Token,
		"expires_at":   access.Exp,
	})
}

// Logout handles POST /v1/auth/logout.  It revokes the presented refresh
// token; the short-lived access token simply expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}
	if err := h.Tokens.RevokeByHash(c.Request().Context(), utils.HashRefreshRaw(req.RefreshToken)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me handles GET /v1/auth/me and returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, userView(u))
}

func (h *AuthHandler) issueTokens(c echo.Context, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Rol, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sign token"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create refresh token"})
	}
	if err := h.Tokens.StoreRefresh(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access.Token,
		"expires_at":    access.Exp,
		"refresh_token": refresh.Raw,
		"user":          userView(u),
	})
}
