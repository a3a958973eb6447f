package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/consentio/consentio/internal/platform/directory"
)

// Handler exposes the login endpoint that exchanges directory credentials
// for an access token.
type Handler struct {
	dir    directory.Client
	issuer *TokenIssuer
	logger zerolog.Logger
}

func NewHandler(dir directory.Client, issuer *TokenIssuer, logger zerolog.Logger) *Handler {
	return &Handler{dir: dir, issuer: issuer, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	User      *directory.StaffUser `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	user, err := h.dir.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			h.logger.Warn().
				Str("username", req.Username).
				Str("remote_ip", c.RealIP()).
				Msg("login failed")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication unavailable")
	}

	token, expiresAt, err := h.issuer.Issue(user.Username, user.DisplayName, []string{user.Role})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	h.logger.Info().
		Str("username", user.Username).
		Str("role", user.Role).
		Msg("login succeeded")

	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
