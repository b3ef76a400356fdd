package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/repository"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// WaitlistHandler exposes the waitlist join/leave/accept surface.
type WaitlistHandler struct {
	Waitlist *service.WaitlistService
	Entries  *repository.WaitlistRepo
}

func NewWaitlistHandler(w *service.WaitlistService, entries *repository.WaitlistRepo) *WaitlistHandler {
	return &WaitlistHandler{Waitlist: w, Entries: entries}
}

// Join handles POST /v1/sessions/:id/waitlist.  Valid only while the
// session is full; the response carries the assigned queue position.
func (h *WaitlistHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	position, err := h.Waitlist.Join(c.Request().Context(), sessionID, uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_id": sessionID,
		"position":   position,
	})
}

// Leave handles DELETE /v1/sessions/:id/waitlist.
func (h *WaitlistHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	if err := h.Waitlist.Leave(c.Request().Context(), sessionID, uid); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Accept handles POST /v1/waitlist/accept?token=...  The token alone
// authenticates the request: it arrives in an email link and the
// client may not have a session open.
func (h *WaitlistHandler) Accept(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	res, err := h.Waitlist.Accept(c.Request().Context(), token)
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

// MyWaitlist handles GET /v1/me/waitlist.
func (h *WaitlistHandler) MyWaitlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Entries.ListActiveByUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"waitlist": items})
}
