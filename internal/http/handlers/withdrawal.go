package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/services"
)

type WithdrawalHandler struct {
	withdrawals     services.WithdrawalService
	defaultCurrency string
}

func NewWithdrawalHandler(withdrawals services.WithdrawalService, defaultCurrency string) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, defaultCurrency: defaultCurrency}
}

type withdrawalBody struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency"`
	Channel  string `json:"channel" binding:"required"`
	Notes    string `json:"notes"`
}

type providerBody struct {
	ChannelReference string `json:"channel_reference"`
	Reason           string `json:"reason"`
}

// POST /api/withdrawals
func (h *WithdrawalHandler) Request(c *gin.Context) {
	var body withdrawalBody
	if !bind(c, &body) {
		return
	}
	res, err := h.withdrawals.Request(c.Request.Context(), services.WithdrawalRequest{
		Amount:   body.Amount,
		Currency: currencyOr(body.Currency, h.defaultCurrency),
		Channel:  body.Channel,
		Notes:    body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"withdrawal": res.Withdrawal, "wallet": res.Wallet})
}

// GET /api/withdrawals
func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	limit, _ := page(c)
	out, err := h.withdrawals.ListMine(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"withdrawals": out})
}

// GET /api/withdrawals/:id
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_withdrawal_id")
	if !ok {
		return
	}
	w, err := h.withdrawals.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"withdrawal": w})
}

// POST /api/admin/withdrawals/:id/pending-provider
func (h *WithdrawalHandler) SetPendingProvider(c *gin.Context) {
	h.provider(c, func(ctx context.Context, id uuid.UUID, b providerBody) (domainagg.WithdrawalResult, error) {
		return h.withdrawals.SetPendingProvider(ctx, id, b.ChannelReference)
	})
}

// POST /api/admin/withdrawals/:id/settle
func (h *WithdrawalHandler) Settle(c *gin.Context) {
	h.provider(c, func(ctx context.Context, id uuid.UUID, b providerBody) (domainagg.WithdrawalResult, error) {
		return h.withdrawals.Settle(ctx, id, b.ChannelReference)
	})
}

// POST /api/admin/withdrawals/:id/fail
func (h *WithdrawalHandler) Fail(c *gin.Context) {
	h.provider(c, func(ctx context.Context, id uuid.UUID, b providerBody) (domainagg.WithdrawalResult, error) {
		return h.withdrawals.Fail(ctx, id, b.Reason)
	})
}

func (h *WithdrawalHandler) provider(c *gin.Context, cmd func(ctx context.Context, id uuid.UUID, b providerBody) (domainagg.WithdrawalResult, error)) {
	id, ok := pathID(c, "id", "invalid_withdrawal_id")
	if !ok {
		return
	}
	var body providerBody
	if !bind(c, &body) {
		return
	}
	res, err := cmd(c.Request.Context(), id, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"withdrawal": res.Withdrawal, "wallet": res.Wallet, "compensated": res.Compensated})
}
