package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/services"
)

type OrderHandler struct {
	orders          services.OrderService
	defaultCurrency string
}

func NewOrderHandler(orders services.OrderService, defaultCurrency string) *OrderHandler {
	return &OrderHandler{orders: orders, defaultCurrency: defaultCurrency}
}

type createOrderBody struct {
	SellerID        uuid.UUID `json:"seller_id" binding:"required"`
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	Amount          string    `json:"amount" binding:"required"`
	Currency        string    `json:"currency"`
	ImageURLs       []string  `json:"image_urls"`
	DeliveryAddress string    `json:"delivery_address"`
	DeliveryNotes   string    `json:"delivery_notes"`
}

type sellerRequestBody struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Amount      string   `json:"amount" binding:"required"`
	Currency    string   `json:"currency"`
	ImageURLs   []string `json:"image_urls"`
}

type acceptRequestBody struct {
	DeliveryAddress string `json:"delivery_address"`
	DeliveryNotes   string `json:"delivery_notes"`
}

type shipmentBody struct {
	Courier        string `json:"courier"`
	TrackingNumber string `json:"tracking_number"`
	ShippingProof  string `json:"shipping_proof"`
}

type confirmDeliveryBody struct {
	Code string `json:"code"`
}

type rejectBody struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var body createOrderBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.Create(c.Request.Context(), services.CreateOrderRequest{
		SellerID:        body.SellerID,
		Title:           body.Title,
		Description:     body.Description,
		Amount:          body.Amount,
		Currency:        currencyOr(body.Currency, h.defaultCurrency),
		ImageURLs:       body.ImageURLs,
		DeliveryAddress: body.DeliveryAddress,
		DeliveryNotes:   body.DeliveryNotes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}

// POST /api/orders/seller-requests
func (h *OrderHandler) CreateSellerRequest(c *gin.Context) {
	var body sellerRequestBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.CreateSellerRequest(c.Request.Context(), services.SellerRequestRequest{
		Title:       body.Title,
		Description: body.Description,
		Amount:      body.Amount,
		Currency:    currencyOr(body.Currency, h.defaultCurrency),
		ImageURLs:   body.ImageURLs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}

// POST /api/orders/:id/accept
func (h *OrderHandler) AcceptSellerRequest(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body acceptRequestBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.AcceptSellerRequest(c.Request.Context(), id, services.AcceptRequestRequest{
		DeliveryAddress: body.DeliveryAddress,
		DeliveryNotes:   body.DeliveryNotes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"order": res.Order, "escrow": res.Escrow, "request": res.Request})
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": o})
}

// GET /api/orders?role=buyer|seller&status=a,b&limit=&offset=
func (h *OrderHandler) List(c *gin.Context) {
	limit, offset := page(c)
	var statuses []string
	for _, s := range c.QueryArray("status") {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, part)
			}
		}
	}
	orders, total, err := h.orders.List(c.Request.Context(), services.ListOrdersRequest{
		Role:     c.Query("role"),
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"orders": orders, "total": total, "limit": limit, "offset": offset})
}

// POST /api/orders/:id/payment-pending
func (h *OrderHandler) MarkPaymentPending(c *gin.Context) {
	h.transition(c, h.orders.MarkPaymentPending)
}

// POST /api/orders/:id/pay
func (h *OrderHandler) Pay(c *gin.Context) {
	h.transition(c, h.orders.Pay)
}

// POST /api/orders/:id/deliver
func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	h.transition(c, h.orders.MarkDelivered)
}

// POST /api/orders/:id/parcel-booked
func (h *OrderHandler) MarkParcelBooked(c *gin.Context) {
	h.shipment(c, h.orders.MarkParcelBooked)
}

// POST /api/orders/:id/ship
func (h *OrderHandler) MarkShipped(c *gin.Context) {
	h.shipment(c, h.orders.MarkShipped)
}

// POST /api/orders/:id/confirm-delivery
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body confirmDeliveryBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.ConfirmDelivery(c.Request.Context(), id, body.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}

// POST /api/orders/:id/reject
func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body rejectBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.Reject(c.Request.Context(), id, services.RejectRequest{
		Reason:      body.Reason,
		Description: body.Description,
		Evidence:    body.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	out := gin.H{"order": res.Order, "escrow": res.Escrow, "requires_admin": res.RequiresAdmin}
	if res.Dispute != nil {
		out["dispute"] = res.Dispute
	}
	response.RespondOK(c, out)
}

// POST /api/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body reasonBody
	if !bind(c, &body) {
		return
	}
	res, err := h.orders.Cancel(c.Request.Context(), id, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}

type orderCommand func(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error)

func (h *OrderHandler) transition(c *gin.Context, cmd orderCommand) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	res, err := cmd(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}

type shipmentCommand func(ctx context.Context, orderID uuid.UUID, req services.ShipmentRequest) (domainagg.OrderResult, error)

func (h *OrderHandler) shipment(c *gin.Context, cmd shipmentCommand) {
	id, ok := pathID(c, "id", "invalid_order_id")
	if !ok {
		return
	}
	var body shipmentBody
	if !bind(c, &body) {
		return
	}
	res, err := cmd(c.Request.Context(), id, services.ShipmentRequest{
		Courier:        body.Courier,
		TrackingNumber: body.TrackingNumber,
		ShippingProof:  body.ShippingProof,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": res.Order, "escrow": res.Escrow})
}
