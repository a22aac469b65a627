package assignment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	// Doctors resolve only their own rows through the visibility filter.
	api.GET("/assignments/hospitals", h.ListHospitalAssignments)
	api.GET("/assignments/departments", h.ListDepartmentAssignments)

	adminGroup := api.Group("", auth.RequireRole(authz.RoleAdmin))
	adminGroup.POST("/assignments/hospitals", h.AssignHospital)
	adminGroup.DELETE("/assignments/hospitals/:id", h.UnassignHospital)
	adminGroup.POST("/assignments/departments", h.AssignDepartment)
	adminGroup.DELETE("/assignments/departments/:id", h.UnassignDepartment)
}

func (h *Handler) AssignHospital(c echo.Context) error {
	var dh DoctorHospital
	if err := c.Bind(&dh); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AssignHospital(c.Request().Context(), &dh); err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, dh)
}

func (h *Handler) ListHospitalAssignments(c echo.Context) error {
	doctorID, err := optionalDoctorID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	pg := pagination.FromContext(c)
	rows, total, err := h.svc.ListHospitalAssignments(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, pg.Limit, pg.Offset))
}

func (h *Handler) UnassignHospital(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.UnassignHospital(c.Request().Context(), id); err != nil {
		return svcError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssignDepartment(c echo.Context) error {
	var dd DoctorDepartment
	if err := c.Bind(&dd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AssignDepartment(c.Request().Context(), &dd); err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, dd)
}

func (h *Handler) ListDepartmentAssignments(c echo.Context) error {
	doctorID, err := optionalDoctorID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	pg := pagination.FromContext(c)
	rows, total, err := h.svc.ListDepartmentAssignments(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, pg.Limit, pg.Offset))
}

func (h *Handler) UnassignDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.UnassignDepartment(c.Request().Context(), id); err != nil {
		return svcError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func optionalDoctorID(c echo.Context) (uuid.UUID, error) {
	raw := c.QueryParam("doctor_id")
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func svcError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, authz.ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case db.IsUniqueViolation(err):
		return echo.NewHTTPError(http.StatusConflict, "doctor already assigned")
	case db.IsForeignKeyViolation(err):
		if db.ConstraintName(err) == "doctor_departments_department_hospital_fkey" {
			return echo.NewHTTPError(http.StatusBadRequest, "department does not belong to that hospital")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "referenced record does not exist")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
