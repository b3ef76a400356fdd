package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/repository"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// BookingHandler exposes the seat booking operations.
type BookingHandler struct {
	Engine       *service.BookingEngine
	Reservations *repository.ReservationRepo
}

func NewBookingHandler(engine *service.BookingEngine, reservations *repository.ReservationRepo) *BookingHandler {
	return &BookingHandler{Engine: engine, Reservations: reservations}
}

// Book handles POST /v1/sessions/:id/book.  One seat, one credit.
func (h *BookingHandler) Book(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	res, err := h.Engine.BookSession(c.Request().Context(), sessionID, uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"session_id":     res.SessionID,
		"status":         string(res.Status),
		"booked_at":      res.BookedAt,
	})
}

// Cancel handles DELETE /v1/sessions/:id/book.  Refunds the credit
// and frees the seat for the waitlist; rejected inside the
// cancellation window.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	if err := h.Engine.CancelBooking(c.Request().Context(), sessionID, uid); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyReservations handles GET /v1/me/reservations.
func (h *BookingHandler) MyReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Reservations.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}
