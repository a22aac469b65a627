package public

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the tracking lookup on an unauthenticated group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/referrals/:referral_id", h.TrackReferral)
}

func (h *Handler) TrackReferral(c echo.Context) error {
	view, err := h.svc.Track(c.Request().Context(), c.Param("referral_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	if view == nil {
		return echo.NewHTTPError(http.StatusNotFound, "referral not found")
	}
	return c.JSON(http.StatusOK, view)
}
