package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// PublicCatalogHandler serves the unauthenticated catalog browse
// endpoints.  Responses only carry availability counts, never who holds
// an item.
type PublicCatalogHandler struct {
	Books     *repository.BookRepo
	Resources *repository.ResourceRepo
}

// NewPublicCatalogHandler constructs a PublicCatalogHandler.
func NewPublicCatalogHandler(books *repository.BookRepo, resources *repository.ResourceRepo) *PublicCatalogHandler {
	if books == nil || resources == nil {
		panic("nil repository passed to NewPublicCatalogHandler")
	}
	return &PublicCatalogHandler{Books: books, Resources: resources}
}

// ListBooks handles GET /v1/public/books with an optional ?q search term.
func (h *PublicCatalogHandler) ListBooks(c echo.Context) error {
	list, err := h.Books.ListAvailability(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, list)
}

// ListResources handles GET /v1/public/resources with an optional ?q
// search term.
func (h *PublicCatalogHandler) ListResources(c echo.Context) error {
	list, err := h.Resources.ListAvailability(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, list)
}

// Search handles GET /v1/public/search, querying both catalogs with the
// same ?q term in one request.
func (h *PublicCatalogHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	ctx := c.Request().Context()
	books, err := h.Books.ListAvailability(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	resources, err := h.Resources.ListAvailability(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"books": books, "resources": resources})
}
