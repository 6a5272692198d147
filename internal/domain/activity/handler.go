package activity

import (
	"net/http"
	"strings"

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
	api.GET("/activities", h.QueryLog)
	api.POST("/activities/:id/verify", h.Verify)
}

// QueryLog lists movements for a unit, newest first. PII fields are
// decrypted here, at the authorized boundary.
func (h *Handler) QueryLog(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	unitID, err := uuid.Parse(c.QueryParam("unit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unit_id")
	}

	q := Query{
		HospitalID:     hospitalID,
		UnitID:         unitID,
		ControlledOnly: c.QueryParam("controlled_only") == "true",
		Limit:          pagination.FromContext(c).Limit,
	}
	if raw := c.QueryParam("actions"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			action := Action(strings.TrimSpace(a))
			if !ValidActions[action] {
				return echo.NewHTTPError(http.StatusBadRequest, "unknown action "+string(action))
			}
			q.Actions = append(q.Actions, action)
		}
	}

	caller := auth.ActorFromContext(c.Request().Context())
	entries, err := h.svc.QueryLog(c.Request().Context(), caller, q)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

type verifyRequest struct {
	Signature string `json:"signature"`
}

// Verify attaches the second signature to a recorded controlled movement.
func (h *Handler) Verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	verifier := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Verify(c.Request().Context(), id, req.Signature, verifier)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
