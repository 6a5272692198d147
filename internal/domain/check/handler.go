package check

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/errs"
	"github.com/medstock/medstock/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/checks", h.CreateCheck)
	api.GET("/checks", h.ListChecks)
	api.GET("/checks/:id", h.GetCheck)
	api.DELETE("/checks/:id", h.DeleteCheck)
	api.GET("/audit-logs", h.ListAuditLogs)
}

func (h *Handler) CreateCheck(c echo.Context) error {
	var req CreateCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	actor := auth.ActorFromContext(c.Request().Context())
	created, err := h.svc.CreateCheck(c.Request().Context(), actor, req)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetCheck(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.ActorFromContext(c.Request().Context())
	found, err := h.svc.GetCheck(c.Request().Context(), caller, id)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) ListChecks(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	unitID, err := uuid.Parse(c.QueryParam("unit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unit_id")
	}

	caller := auth.ActorFromContext(c.Request().Context())
	checks, err := h.svc.ListChecks(c.Request().Context(), caller, hospitalID, unitID, pagination.FromContext(c).Limit)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, checks)
}

type deleteCheckRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) DeleteCheck(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req deleteCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.DeleteCheck(c.Request().Context(), id, actor, req.Reason); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAuditLogs(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	unitID, err := uuid.Parse(c.QueryParam("unit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unit_id")
	}

	caller := auth.ActorFromContext(c.Request().Context())
	entries, err := h.svc.ListAuditLogs(c.Request().Context(), caller, hospitalID, unitID,
		c.QueryParam("record_type"), pagination.FromContext(c).Limit)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}
