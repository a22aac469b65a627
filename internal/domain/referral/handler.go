package referral

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/internal/platform/db"
	"github.com/carebridge/carebridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Reads are visibility-filtered in the repository; a caller only ever
	// sees referrals they participate in.
	api.GET("/referrals", h.ListReferrals)
	api.GET("/referrals/:id", h.GetReferral)
	api.GET("/referrals/:id/history", h.GetStatusHistory)

	writeGroup := api.Group("", auth.RequireRole(authz.RoleAdmin, authz.RoleDoctor, authz.RoleSpecialist))
	writeGroup.POST("/referrals", h.CreateReferral)
	writeGroup.PUT("/referrals/:id", h.UpdateReferral)
	writeGroup.PATCH("/referrals/:id/status", h.UpdateStatus)
}

func (h *Handler) CreateReferral(c echo.Context) error {
	var ref Referral
	if err := c.Bind(&ref); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &ref); err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, ref)
}

func (h *Handler) GetReferral(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ref, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) ListReferrals(c echo.Context) error {
	var f ListFilter
	f.Status = c.QueryParam("status")
	f.Urgency = c.QueryParam("urgency")
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}

	pg := pagination.FromContext(c)
	refs, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(refs, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateReferral(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var ref Referral
	if err := c.Bind(&ref); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ref.ID = id
	if err := h.svc.Update(c.Request().Context(), &ref); err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, ref)
}

type statusRequest struct {
	Status          string     `json:"status"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.AppointmentDate); err != nil {
		return svcError(err)
	}
	ref, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	history, err := h.svc.GetStatusHistory(c.Request().Context(), id)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, history)
}

func svcError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, authz.ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, pgx.ErrNoRows), db.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "referral not found")
	case db.IsForeignKeyViolation(err):
		return echo.NewHTTPError(http.StatusBadRequest, "referenced record does not exist")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
