package ward

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/hms/internal/platform/auth"
	"github.com/hospital/hms/internal/platform/db"
	"github.com/hospital/hms/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	wards := api.Group("/wards")

	// Read endpoints – any authenticated user
	readGroup := wards.Group("", auth.RequireAuthenticated())
	readGroup.GET("", h.ListWards)
	readGroup.GET("/:id", h.GetWard)
	readGroup.GET("/beds/status", h.GetBedStatus)
	readGroup.GET("/beds/status/export", h.ExportBedStatus)

	// Topology endpoints – admin
	adminGroup := wards.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("", h.CreateWard)
	adminGroup.PUT("/:id", h.UpdateWard)
	adminGroup.POST("/:id/beds", h.CreateBed)

	// Occupancy endpoints – admin, nurse
	bedGroup := wards.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse))
	bedGroup.PATCH("/beds/:id/status", h.SetBedStatus)
	bedGroup.POST("/beds/:id/assign", h.AssignBed)
	bedGroup.POST("/beds/:id/unassign", h.UnassignBed)
}

// -- Ward Handlers --

func (h *Handler) CreateWard(c echo.Context) error {
	var in CreateWardInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, ErrInvalidBody)
	}
	w, err := h.svc.CreateWard(c.Request().Context(), auth.ActorFromRequest(c), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWards(c echo.Context) error {
	pg := pagination.FromContext(c)
	wards, total, err := h.svc.ListWards(c.Request().Context(), pg)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(wards, total, pg))
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrWardNotFound)
	}
	w, err := h.svc.GetWardWithOccupancy(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrWardNotFound)
	}
	var patch WardPatch
	if err := c.Bind(&patch); err != nil {
		return h.fail(c, ErrInvalidBody)
	}
	w, err := h.svc.UpdateWard(c.Request().Context(), auth.ActorFromRequest(c), id, patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

type createBedRequest struct {
	RoomID    string `json:"room_id"`
	BedNumber string `json:"bed_number"`
}

func (h *Handler) CreateBed(c echo.Context) error {
	wardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrWardNotFound)
	}
	var req createBedRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, ErrInvalidBody)
	}
	if strings.TrimSpace(req.RoomID) == "" {
		return h.fail(c, ErrRoomIDRequired)
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return h.fail(c, ErrRoomNotFound)
	}

	b, err := h.svc.CreateBed(c.Request().Context(), auth.ActorFromRequest(c), wardID, CreateBedInput{
		RoomID:    roomID,
		BedNumber: req.BedNumber,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// -- Bed Handlers --

type setStatusRequest struct {
	Status            string  `json:"status"`
	OccupantPatientID *string `json:"occupant_patient_id"`
}

func (h *Handler) SetBedStatus(c echo.Context) error {
	bedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrBedNotFound)
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, ErrInvalidBody)
	}

	var occupant *uuid.UUID
	if req.OccupantPatientID != nil && *req.OccupantPatientID != "" {
		pid, err := uuid.Parse(*req.OccupantPatientID)
		if err != nil {
			return h.fail(c, ErrInvalidPatientID)
		}
		occupant = &pid
	}

	d, err := h.svc.SetBedStatus(c.Request().Context(), auth.ActorFromRequest(c), bedID, BedStatus(req.Status), occupant)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetBedStatus(c echo.Context) error {
	filter, err := parseBedFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.svc.GetBedStatus(c.Request().Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ExportBedStatus(c echo.Context) error {
	filter, err := parseBedFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	data, err := h.svc.ExportBedStatus(c.Request().Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	name := fmt.Sprintf("bed-status-%s.xlsx", h.svc.now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

type assignRequest struct {
	PatientID string `json:"patient_id"`
}

func (h *Handler) AssignBed(c echo.Context) error {
	bedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrBedNotFound)
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, ErrInvalidBody)
	}
	if strings.TrimSpace(req.PatientID) == "" {
		return h.fail(c, ErrPatientIDRequired)
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return h.fail(c, ErrInvalidPatientID)
	}

	d, err := h.svc.AssignBed(c.Request().Context(), auth.ActorFromRequest(c), bedID, patientID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UnassignBed(c echo.Context) error {
	bedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.fail(c, ErrBedNotFound)
	}
	d, err := h.svc.UnassignBed(c.Request().Context(), auth.ActorFromRequest(c), bedID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func parseBedFilter(c echo.Context) (BedFilter, error) {
	var f BedFilter
	if v := c.QueryParam("ward_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, ErrInvalidWardID
		}
		f.WardID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, ErrInvalidPatientID
		}
		f.PatientID = &id
	}
	return f, nil
}

// fail maps service errors to HTTP errors. Unexpected errors are logged and
// reported without detail.
func (h *Handler) fail(c echo.Context, err error) error {
	var e *Error
	msg := ""
	if errors.As(err, &e) {
		msg = e.Message
	}

	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msg)
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, msg)
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, msg)
	}

	h.logger.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("ward request failed")
	if errors.Is(err, db.ErrTxAborted) {
		return echo.NewHTTPError(http.StatusInternalServerError, "transaction failed")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
