package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scanbook/scanbook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/slots/generate", h.GenerateSlots)
	api.GET("/slots/available", h.GetAvailableSlot)
	api.GET("/slots", h.ListSlots)
	api.GET("/pool", h.ListPool)

	api.POST("/bookings", h.CreateBooking)
	api.GET("/bookings", h.ListBookings)
	api.GET("/bookings/:id", h.GetBooking)
	api.DELETE("/bookings/:id", h.CancelBooking)
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	var params GenerateParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.GenerateSlots(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) GetAvailableSlot(c echo.Context) error {
	examinationID, err := uuid.Parse(c.QueryParam("examination_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid examination_id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	entry, err := h.svc.GetAvailableSlot(c.Request().Context(), examinationID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entry == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no open slot for this examination and date")
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) ListSlots(c echo.Context) error {
	examinationID, err := uuid.Parse(c.QueryParam("examination_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid examination_id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	slots, err := h.svc.ListSlots(c.Request().Context(), examinationID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) ListPool(c echo.Context) error {
	examinationID, err := uuid.Parse(c.QueryParam("examination_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid examination_id")
	}
	entries, err := h.svc.ListPool(c.Request().Context(), examinationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Book(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			// Contention is the expected path: the client re-fetches the
			// open slot and retries.
			return echo.NewHTTPError(http.StatusConflict, "slot no longer available")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListBookings(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := AppointmentStatus(c.QueryParam("status"))
	items, total, err := h.svc.ListAppointments(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, appt)
}
