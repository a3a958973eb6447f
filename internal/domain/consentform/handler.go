package consentform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/consentio/consentio/internal/domain/template"
	"github.com/consentio/consentio/internal/platform/auth"
	"github.com/consentio/consentio/pkg/pagination"
)

// DocumentRenderer produces the archival PDF for a filled form.
type DocumentRenderer interface {
	Render(content template.TemplateContent, form *FilledForm) ([]byte, error)
}

type Handler struct {
	svc      *Service
	renderer DocumentRenderer
}

func NewHandler(svc *Service, renderer DocumentRenderer) *Handler {
	return &Handler{svc: svc, renderer: renderer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinician := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	clinician.GET("/consent-forms", h.List)
	clinician.POST("/consent-forms", h.Create)
	clinician.GET("/consent-forms/:id", h.Get)
	clinician.GET("/consent-forms/:id/pdf", h.DownloadPDF)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.DELETE("/consent-forms/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	f, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form id")
	}

	f, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	forms, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(forms, total, pg.Limit, pg.Offset))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form id")
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DownloadPDF streams the rendered consent document with a suggested
// filename. A form whose template row was deleted renders from its snapshot.
func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form id")
	}

	f, content, err := h.svc.ResolveForRender(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	pdf, err := h.renderer.Render(content, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render document")
	}

	filename := SuggestedFilename(f)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// SuggestedFilename builds the download name for a form's rendered document.
func SuggestedFilename(f *FilledForm) string {
	return fmt.Sprintf("consentimiento_%s_%s.pdf",
		f.ID.String()[:8], f.FilledAt.Format("20060102"))
}

func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consent form not found")
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "operation could not be completed")
	}
}
