package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/model"
	"github.com/iliyamo/studio-class-booking/internal/repository"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// AdminHandler exposes the scheduling and wallet-correction surface
// reserved for the ADMIN role.
type AdminHandler struct {
	Sessions     *repository.SessionRepo
	Reservations *repository.ReservationRepo
	Credits      *service.CreditService
}

func NewAdminHandler(sessions *repository.SessionRepo, reservations *repository.ReservationRepo, credits *service.CreditService) *AdminHandler {
	return &AdminHandler{Sessions: sessions, Reservations: reservations, Credits: credits}
}

type nameReq struct {
	Name string `json:"name"`
}

type createSessionReq struct {
	ClassTypeID  uint64    `json:"class_type_id"`
	InstructorID uint64    `json:"instructor_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Capacity     int       `json:"capacity"`
}

type attendanceReq struct {
	UserID uint64 `json:"user_id"`
	Status string `json:"status"` // ATTENDED | NO_SHOW
}

type adjustReq struct {
	UserID uint64 `json:"user_id"`
	Delta  int64  `json:"delta"`
	Notes  string `json:"notes"`
}

// CreateClassType handles POST /v1/admin/class-types.
func (h *AdminHandler) CreateClassType(c echo.Context) error {
	var req nameReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	id, err := h.Sessions.CreateClassType(c.Request().Context(), strings.TrimSpace(req.Name))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// CreateInstructor handles POST /v1/admin/instructors.
func (h *AdminHandler) CreateInstructor(c echo.Context) error {
	var req nameReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	id, err := h.Sessions.CreateInstructor(c.Request().Context(), strings.TrimSpace(req.Name))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// CreateSession handles POST /v1/admin/sessions.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ClassTypeID == 0 || req.InstructorID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_type_id and instructor_id required"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must follow starts_at"})
	}
	if !req.StartsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}

	id, err := h.Sessions.Create(c.Request().Context(), req.ClassTypeID, req.InstructorID, req.StartsAt, req.EndsAt, req.Capacity)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// CancelSession handles DELETE /v1/admin/sessions/:id.  Marks the
// session CANCELLED; per-attendee refunds are handled through the
// wallet adjustment endpoint.
func (h *AdminHandler) CancelSession(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if err := h.Sessions.Cancel(c.Request().Context(), sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found or not scheduled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAttendance handles POST /v1/admin/sessions/:id/attendance.
// Attendance is terminal; credits are not refunded for no-shows.
func (h *AdminHandler) MarkAttendance(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req attendanceReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	var status model.ReservationStatus
	switch strings.ToUpper(strings.TrimSpace(req.Status)) {
	case "ATTENDED":
		status = model.ReservationAttended
	case "NO_SHOW":
		status = model.ReservationNoShow
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be ATTENDED or NO_SHOW"})
	}

	if err := h.Reservations.MarkAttendance(c.Request().Context(), sessionID, req.UserID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no booked reservation for that user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// AdjustCredits handles POST /v1/admin/credits/adjust, the manual
// wallet correction path.  Every adjustment lands in the ledger with
// reason ADMIN_ADJUST and the supplied notes.
func (h *AdminHandler) AdjustCredits(c echo.Context) error {
	var req adjustReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	if req.Delta == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "delta must be non-zero"})
	}

	if err := h.Credits.AdminAdjust(c.Request().Context(), req.UserID, req.Delta, strings.TrimSpace(req.Notes)); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
