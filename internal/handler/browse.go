package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/repository"
)

// BrowseHandler exposes the unauthenticated schedule views.
type BrowseHandler struct {
	Sessions *repository.SessionRepo
}

func NewBrowseHandler(sessions *repository.SessionRepo) *BrowseHandler {
	return &BrowseHandler{Sessions: sessions}
}

// ListSessions handles GET /v1/sessions.  Optional from/to query
// parameters (RFC 3339) bound the window; the default is the next
// two weeks.
func (h *BrowseHandler) ListSessions(c echo.Context) error {
	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 0, 14)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
		from = t.UTC()
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
		to = t.UTC()
	}

	items, err := h.Sessions.ListUpcoming(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": items})
}

// GetSession handles GET /v1/sessions/:id.
func (h *BrowseHandler) GetSession(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	s, err := h.Sessions.GetByID(c.Request().Context(), sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// ListClassTypes handles GET /v1/class-types.
func (h *BrowseHandler) ListClassTypes(c echo.Context) error {
	items, err := h.Sessions.ListClassTypes(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"class_types": items})
}

// ListInstructors handles GET /v1/instructors.
func (h *BrowseHandler) ListInstructors(c echo.Context) error {
	items, err := h.Sessions.ListInstructors(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"instructors": items})
}
