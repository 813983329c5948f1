package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/services"
)

type WalletHandler struct {
	wallets         services.WalletService
	defaultCurrency string
}

func NewWalletHandler(wallets services.WalletService, defaultCurrency string) *WalletHandler {
	return &WalletHandler{wallets: wallets, defaultCurrency: defaultCurrency}
}

type walletMoveBody struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

// GET /api/wallet
func (h *WalletHandler) Mine(c *gin.Context) {
	w, err := h.wallets.Mine(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"wallet": w})
}

// GET /api/wallet/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, offset := page(c)
	txs, total, err := h.wallets.Transactions(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"transactions": txs, "total": total, "limit": limit, "offset": offset})
}

// POST /api/admin/wallets/:userId/top-up
func (h *WalletHandler) TopUp(c *gin.Context) {
	h.move(c, h.wallets.TopUp)
}

// POST /api/admin/wallets/:userId/adjust (signed amount)
func (h *WalletHandler) Adjust(c *gin.Context) {
	h.move(c, h.wallets.Adjust)
}

func (h *WalletHandler) move(c *gin.Context, cmd func(ctx context.Context, userID uuid.UUID, req services.WalletMoveRequest) (domainagg.WalletResult, error)) {
	userID, ok := pathID(c, "userId", "invalid_user_id")
	if !ok {
		return
	}
	var body walletMoveBody
	if !bind(c, &body) {
		return
	}
	res, err := cmd(c.Request.Context(), userID, services.WalletMoveRequest{
		Amount:   body.Amount,
		Currency: currencyOr(body.Currency, h.defaultCurrency),
		Reason:   body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"wallet": res.Wallet, "transaction": res.Transaction})
}
