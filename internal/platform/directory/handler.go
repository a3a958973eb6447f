package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the patient demographics lookup used to prefill consent
// forms at the bedside.
type Handler struct {
	client Client
}

func NewHandler(client Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes mounts the lookup under the given role guard. The guard is
// injected by the caller: auth already depends on this package for the login
// handler, so the directory cannot import it back.
func (h *Handler) RegisterRoutes(api *echo.Group, guard echo.MiddlewareFunc) {
	lookup := api.Group("", guard)
	lookup.GET("/patients/:document", h.FindPatient)
}

func (h *Handler) FindPatient(c echo.Context) error {
	document := c.Param("document")
	if document == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document number is required")
	}

	patient, err := h.client.FindPatient(c.Request().Context(), document)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "patient lookup unavailable")
	}

	return c.JSON(http.StatusOK, patient)
}
