package handlers

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/mauv0809/dcf/internal/valuation"
	"github.com/mauv0809/dcf/internal/views"
)

type Handler struct {
	defaults valuation.Parameters
}

func New(defaults valuation.Parameters) *Handler {
	return &Handler{defaults: defaults}
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Index(c echo.Context) error {
	return Render(c, http.StatusOK, views.Index(h.defaults))
}

// Render writes a templ component as an HTML response.
func Render(c echo.Context, status int, t templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return t.Render(c.Request().Context(), c.Response())
}
