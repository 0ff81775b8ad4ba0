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

// BookHandler implements the admin catalog endpoints for books and their
// exemplars.
type BookHandler struct {
	Books *repository.BookRepo
}

// NewBookHandler constructs a BookHandler.
func NewBookHandler(books *repository.BookRepo) *BookHandler {
	if books == nil {
		panic("nil repository passed to NewBookHandler")
	}
	return &BookHandler{Books: books}
}

type bookRequest struct {
	Titulo    string `json:"titulo"`
	Autor     string `json:"autor"`
	ISBN      string `json:"isbn"`
	Editorial string `json:"editorial"`
	Sede      string `json:"sede"`
	Copias    int    `json:"copias"`
}

func (r *bookRequest) validate() error {
	r.Titulo = strings.TrimSpace(r.Titulo)
	r.Autor = strings.TrimSpace(r.Autor)
	if r.Titulo == "" || r.Autor == "" {
		return errors.New("titulo and autor are required")
	}
	if r.Copias < 0 || r.Copias > 500 {
		return errors.New("copias must be between 0 and 500")
	}
	return nil
}

// Create handles POST /v1/books.  The book row and its initial exemplars
// are created in one transaction.
func (h *BookHandler) Create(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	tx, err := h.Books.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	b := model.Book{Titulo: req.Titulo, Autor: req.Autor, ISBN: req.ISBN, Editorial: req.Editorial, Sede: req.Sede}
	if err := h.Books.CreateTx(ctx, tx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if req.Copias > 0 {
		if err := h.Books.AddExemplarsTx(ctx, tx, b.ID, req.Copias); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        b.ID,
		"titulo":    b.Titulo,
		"autor":     b.Autor,
		"isbn":      b.ISBN,
		"editorial": b.Editorial,
		"sede":      b.Sede,
		"copias":    req.Copias,
	})
}

// List handles GET /v1/books with an optional ?q search term.
func (h *BookHandler) List(c echo.Context) error {
	books, err := h.Books.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, books)
}

// Get handles GET /v1/books/:id and includes the book's exemplars.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	ctx := c.Request().Context()
	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	exemplars, err := h.Books.ListExemplars(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        b.ID,
		"titulo":    b.Titulo,
		"autor":     b.Autor,
		"isbn":      b.ISBN,
		"editorial": b.Editorial,
		"sede":      b.Sede,
		"exemplars": exemplarViews(exemplars),
	})
}

func exemplarViews(list []model.Exemplar) []echo.Map {
	out := make([]echo.Map, 0, len(list))
	for _, e := range list {
		v := echo.Map{
			"id":          e.ID,
			"numeroCopia": e.NumeroCopia,
			"estado":      e.Estado,
		}
		if e.Observaciones != nil {
			v["observaciones"] = *e.Observaciones
		}
		out = append(out, v)
	}
	return out
}

// Update handles PUT /v1/books/:id.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b := model.Book{ID: id, Titulo: req.Titulo, Autor: req.Autor, ISBN: req.ISBN, Editorial: req.Editorial, Sede: req.Sede}
	if err := h.Books.Update(c.Request().Context(), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "book updated"})
}

// AddExemplars handles POST /v1/books/:id/exemplars, adding more copies.
func (h *BookHandler) AddExemplars(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var body struct {
		Copias int `json:"copias"`
	}
	if err := c.Bind(&body); err != nil || body.Copias < 1 || body.Copias > 500 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "copias must be between 1 and 500"})
	}
	ctx := c.Request().Context()
	if _, err := h.Books.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	tx, err := h.Books.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Books.AddExemplarsTx(ctx, tx, id, body.Copias); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{"message": "exemplars added", "copias": body.Copias})
}

// Delete handles DELETE /v1/books/:id, removing the book and its copies.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	ctx := c.Request().Context()
	tx, err := h.Books.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Books.DeleteTx(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "book deleted"})
}
