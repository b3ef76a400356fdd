package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/service"
)

// getUserID extracts the authenticated user's ID from the context.
// The JWT middleware stores the raw claim value, whose concrete type
// depends on how the JSON was decoded.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	default:
		return 0, errors.New("user_id missing from context")
	}
}

// pathID parses the named path parameter as an unsigned integer.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// serviceError maps the service failure taxonomy onto HTTP responses.
// Unknown errors become 500 with a generic body.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, service.ErrSessionUnavailable):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "session is not open for booking"})
	case errors.Is(err, service.ErrSessionFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is full"})
	case errors.Is(err, service.ErrAlreadyBooked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already booked"})
	case errors.Is(err, service.ErrInsufficientCredits):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient credits"})
	case errors.Is(err, service.ErrReservationNotFound), errors.Is(err, service.ErrReservationNotActive):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active booking for session"})
	case errors.Is(err, service.ErrCancellationWindowClosed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "cancellation window has closed"})
	case errors.Is(err, service.ErrSessionNotFull):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "session has open seats, book directly"})
	case errors.Is(err, service.ErrAlreadyWaiting):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already on the waitlist"})
	case errors.Is(err, service.ErrWaitlistFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "waitlist is full"})
	case errors.Is(err, service.ErrNotWaiting):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not on the waitlist"})
	case errors.Is(err, service.ErrInvalidInvite),
		errors.Is(err, service.ErrInviteNotActive),
		errors.Is(err, service.ErrInviteExpired):
		// One body for every invitation failure so the token's state
		// cannot be probed.
		return c.JSON(http.StatusGone, echo.Map{"error": "invitation is no longer valid"})
	case errors.Is(err, service.ErrPurchaseNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
