package template

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/consentio/consentio/internal/platform/auth"
	"github.com/consentio/consentio/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	read.GET("/templates", h.ListCurrent)
	read.GET("/templates/:id", h.Get)
	read.GET("/templates/:id/versions", h.ListVersions)

	write := api.Group("", auth.RequireRole("admin"))
	write.POST("/templates", h.Create)
	write.PUT("/templates/:id", h.Update)
	write.DELETE("/templates/:id", h.Delete)
	write.POST("/templates/:id/restore/:versionId", h.Restore)
}

func (h *Handler) Create(c echo.Context) error {
	var content TemplateContent
	if err := c.Bind(&content); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	author := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.Create(c.Request().Context(), content, author)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}

	var content TemplateContent
	if err := c.Bind(&content); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	author := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.Update(c.Request().Context(), id, content, author)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Restore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}
	versionID, err := uuid.Parse(c.Param("versionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version id")
	}

	author := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.Restore(c.Request().Context(), id, versionID, author)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}

	t, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListCurrent(c echo.Context) error {
	pg := pagination.FromContext(c)
	templates, total, err := h.svc.ListCurrent(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(templates, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListVersions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}

	versions, err := h.svc.ListVersions(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, versions)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps domain errors onto HTTP responses. Transaction failures
// surface as 503 so callers know the write can be retried.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "operation could not be completed")
	}
}
