package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// ResourceHandler implements the admin catalog endpoints for CRA
// resources and their physical instances.
type ResourceHandler struct {
	Resources *repository.ResourceRepo
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(resources *repository.ResourceRepo) *ResourceHandler {
	if resources == nil {
		panic("nil repository passed to NewResourceHandler")
	}
	return &ResourceHandler{Resources: resources}
}

type resourceRequest struct {
	Nombre     string `json:"nombre"`
	Categoria  string `json:"categoria"`
	Sede       string `json:"sede"`
	Ubicacion  string `json:"ubicacion"`
	CodigoBase string `json:"codigoBase"`
	Unidades   int    `json:"unidades"`
}

func (r *resourceRequest) validate(forCreate bool) error {
	r.Nombre = strings.TrimSpace(r.Nombre)
	r.Categoria = strings.TrimSpace(r.Categoria)
	r.CodigoBase = strings.TrimSpace(strings.ToUpper(r.CodigoBase))
	if r.Nombre == "" || r.Categoria == "" {
		return errors.New("nombre and categoria are required")
	}
	if r.Unidades < 0 || r.Unidades > 500 {
		return errors.New("unidades must be between 0 and 500")
	}
	if forCreate && r.Unidades > 0 && r.CodigoBase == "" {
		return errors.New("codigoBase is required when creating unidades")
	}
	return nil
}

// Create handles POST /v1/resources.  The resource row and its initial
// instances (codes "<codigoBase>-1", "-2", ...) are created in one
// transaction.
func (h *ResourceHandler) Create(c echo.Context) error {
	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(true); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	tx, err := h.Resources.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	rc := model.ResourceCRA{Nombre: req.Nombre, Categoria: req.Categoria, Sede: req.Sede, Ubicacion: req.Ubicacion}
	if err := h.Resources.CreateTx(ctx, tx, &rc); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if req.Unidades > 0 {
		if err := h.Resources.AddInstancesTx(ctx, tx, rc.ID, req.CodigoBase, req.Unidades); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        rc.ID,
		"nombre":    rc.Nombre,
		"categoria": rc.Categoria,
		"sede":      rc.Sede,
		"ubicacion": rc.Ubicacion,
		"unidades":  req.Unidades,
	})
}

// List handles GET /v1/resources with an optional ?q search term.
func (h *ResourceHandler) List(c echo.Context) error {
	resources, err := h.Resources.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, resources)
}

// Get handles GET /v1/resources/:id and includes the resource's units.
func (h *ResourceHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	ctx := c.Request().Context()
	rc, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	instances, err := h.Resources.ListInstances(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        rc.ID,
		"nombre":    rc.Nombre,
		"categoria": rc.Categoria,
		"sede":      rc.Sede,
		"ubicacion": rc.Ubicacion,
		"instances": instanceViews(instances),
	})
}

func instanceViews(list []model.ResourceInstance) []echo.Map {
	out := make([]echo.Map, 0, len(list))
	for _, ri := range list {
		v := echo.Map{
			"id":            ri.ID,
			"codigoInterno": ri.CodigoInterno,
			"estado":        ri.Estado,
		}
		if ri.Observaciones != nil {
			v["observaciones"] = *ri.Observaciones
		}
		out = append(out, v)
	}
	return out
}

// Update handles PUT /v1/resources/:id.
func (h *ResourceHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(false); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rc := model.ResourceCRA{ID: id, Nombre: req.Nombre, Categoria: req.Categoria, Sede: req.Sede, Ubicacion: req.Ubicacion}
	if err := h.Resources.Update(c.Request().Context(), &rc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "resource updated"})
}

// AddInstances handles POST /v1/resources/:id/instances, adding more
// physical units with sequential codes.
func (h *ResourceHandler) AddInstances(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		CodigoBase string `json:"codigoBase"`
		Unidades   int    `json:"unidades"`
	}
	if err := c.Bind(&body); err != nil || body.Unidades < 1 || body.Unidades > 500 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unidades must be between 1 and 500"})
	}
	body.CodigoBase = strings.TrimSpace(strings.ToUpper(body.CodigoBase))
	if body.CodigoBase == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "codigoBase is required"})
	}
	ctx := c.Request().Context()
	if _, err := h.Resources.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	tx, err := h.Resources.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Resources.AddInstancesTx(ctx, tx, id, body.CodigoBase, body.Unidades); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{"message": "instances added", "unidades": body.Unidades})
}

// Delete handles DELETE /v1/resources/:id, removing the resource and its
// units.
func (h *ResourceHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	ctx := c.Request().Context()
	tx, err := h.Resources.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Resources.DeleteTx(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "resource deleted"})
}
