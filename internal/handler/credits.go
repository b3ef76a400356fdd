package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-class-booking/internal/repository"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// CreditsHandler exposes wallet reads and the purchase flow.
type CreditsHandler struct {
	Credits *service.CreditService
	Wallets *repository.WalletRepo
}

func NewCreditsHandler(credits *service.CreditService, wallets *repository.WalletRepo) *CreditsHandler {
	return &CreditsHandler{Credits: credits, Wallets: wallets}
}

type purchaseReq struct {
	Credits int64 `json:"credits"`
}

type confirmReq struct {
	Reference string `json:"reference"`
}

// MyWallet handles GET /v1/me/wallet: current balance plus recent
// ledger entries.
func (h *CreditsHandler) MyWallet(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	w, err := h.Wallets.Get(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ledger, err := h.Wallets.ListLedger(ctx, uid, 50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"balance": w.Balance,
		"ledger":  ledger,
	})
}

// CreatePurchase handles POST /v1/purchases: opens a PENDING purchase
// and returns the reference to hand to the payment provider.
func (h *CreditsHandler) CreatePurchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Credits < 1 || req.Credits > 1000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credits must be between 1 and 1000"})
	}

	p, err := h.Credits.CreatePurchase(c.Request().Context(), uid, req.Credits)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"purchase_id": p.ID,
		"reference":   p.Reference,
		"credits":     p.Credits,
		"status":      string(p.Status),
	})
}

// ConfirmPurchase handles POST /v1/purchases/confirm, the webhook-style
// endpoint the payment collaborator calls.  Confirmations are
// idempotent per reference: a duplicate returns 200 without granting
// twice.
func (h *CreditsHandler) ConfirmPurchase(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Reference) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference required"})
	}

	p, err := h.Credits.ConfirmPurchase(c.Request().Context(), strings.TrimSpace(req.Reference))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"purchase_id": p.ID,
		"reference":   p.Reference,
		"credits":     p.Credits,
		"status":      string(p.Status),
	})
}
