package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/services"
)

type DisputeHandler struct {
	disputes services.DisputeService
}

func NewDisputeHandler(disputes services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

type raiseDisputeBody struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

type evidenceBody struct {
	Evidence string `json:"evidence"`
}

type notesBody struct {
	Notes string `json:"notes"`
}

type resolveBody struct {
	Resolution  string `json:"resolution"`
	Notes       string `json:"notes"`
	BuyerRefund string `json:"buyer_refund"`
}

// POST /api/orders/:id/disputes
func (h *DisputeHandler) Raise(c *gin.Context) {
	orderID, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body raiseDisputeBody
	if !bind(c, &body) {
		return
	}
	res, err := h.disputes.Raise(c.Request.Context(), orderID, services.RaiseDisputeRequest{
		Reason:      body.Reason,
		Description: body.Description,
		Evidence:    body.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"dispute": res.Dispute, "order": res.Order})
}

// GET /api/orders/:id/disputes
func (h *DisputeHandler) ListForOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	out, err := h.disputes.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"disputes": out})
}

// GET /api/disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_dispute_id")
	if !ok {
		return
	}
	d, err := h.disputes.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"dispute": d})
}

// POST /api/disputes/:id/evidence
func (h *DisputeHandler) AddEvidence(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_dispute_id")
	if !ok {
		return
	}
	var body evidenceBody
	if !bind(c, &body) {
		return
	}
	res, err := h.disputes.AddEvidence(c.Request.Context(), id, body.Evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"dispute": res.Dispute})
}

// POST /api/admin/disputes/:id/escalate
func (h *DisputeHandler) Escalate(c *gin.Context) {
	h.adminNotes(c, h.disputes.Escalate)
}

// POST /api/admin/disputes/:id/notes
func (h *DisputeHandler) AddAdminNotes(c *gin.Context) {
	h.adminNotes(c, h.disputes.AddAdminNotes)
}

// POST /api/admin/disputes/:id/close
func (h *DisputeHandler) Close(c *gin.Context) {
	h.adminNotes(c, h.disputes.Close)
}

// POST /api/admin/disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_dispute_id")
	if !ok {
		return
	}
	var body resolveBody
	if !bind(c, &body) {
		return
	}
	res, err := h.disputes.Resolve(c.Request.Context(), id, services.ResolveDisputeRequest{
		Resolution:  body.Resolution,
		Notes:       body.Notes,
		BuyerRefund: body.BuyerRefund,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"dispute":       res.Dispute,
		"order":         res.Order,
		"escrow":        res.Escrow,
		"buyer_refund":  res.BuyerRefund,
		"seller_payout": res.SellerPayout,
	})
}

func (h *DisputeHandler) adminNotes(c *gin.Context, cmd func(ctx context.Context, id uuid.UUID, notes string) (domainagg.DisputeResult, error)) {
	id, ok := pathID(c, "id", "invalid_dispute_id")
	if !ok {
		return
	}
	var body notesBody
	if !bind(c, &body) {
		return
	}
	res, err := cmd(c.Request.Context(), id, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"dispute": res.Dispute, "order": res.Order})
}
