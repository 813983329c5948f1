package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	redisclient "github.com/yungbote/escrow-backend/internal/clients/redis"
	httpH "github.com/yungbote/escrow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/escrow-backend/internal/http/middleware"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	Idempotency redisclient.IdempotencyStore
	CORSOrigins []string
	// Span name prefix for otelgin; tracing is skipped when empty.
	ServiceName string

	HealthHandler     *httpH.HealthHandler
	OrderHandler      *httpH.OrderHandler
	DisputeHandler    *httpH.DisputeHandler
	WalletHandler     *httpH.WalletHandler
	WithdrawalHandler *httpH.WithdrawalHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireActor())
	api.Use(httpMW.Idempotency(cfg.Idempotency, cfg.Log))

	// Orders
	if h := cfg.OrderHandler; h != nil {
		api.POST("/orders", h.Create)
		api.GET("/orders", h.List)
		api.POST("/orders/seller-requests", h.CreateSellerRequest)
		api.GET("/orders/:id", h.Get)
		api.POST("/orders/:id/accept", h.AcceptSellerRequest)
		api.POST("/orders/:id/payment-pending", h.MarkPaymentPending)
		api.POST("/orders/:id/pay", h.Pay)
		api.POST("/orders/:id/parcel-booked", h.MarkParcelBooked)
		api.POST("/orders/:id/ship", h.MarkShipped)
		api.POST("/orders/:id/deliver", h.MarkDelivered)
		api.POST("/orders/:id/confirm-delivery", h.ConfirmDelivery)
		api.POST("/orders/:id/reject", h.Reject)
		api.POST("/orders/:id/cancel", h.Cancel)
	}

	// Disputes
	if h := cfg.DisputeHandler; h != nil {
		api.POST("/orders/:id/disputes", h.Raise)
		api.GET("/orders/:id/disputes", h.ListForOrder)
		api.GET("/disputes/:id", h.Get)
		api.POST("/disputes/:id/evidence", h.AddEvidence)
	}

	// Wallet
	if h := cfg.WalletHandler; h != nil {
		api.GET("/wallet", h.Mine)
		api.GET("/wallet/transactions", h.Transactions)
	}

	// Withdrawals
	if h := cfg.WithdrawalHandler; h != nil {
		api.POST("/withdrawals", h.Request)
		api.GET("/withdrawals", h.ListMine)
		api.GET("/withdrawals/:id", h.Get)
	}

	admin := api.Group("/admin")
	admin.Use(httpMW.RequireAdmin())
	{
		if h := cfg.DisputeHandler; h != nil {
			admin.POST("/disputes/:id/escalate", h.Escalate)
			admin.POST("/disputes/:id/notes", h.AddAdminNotes)
			admin.POST("/disputes/:id/resolve", h.Resolve)
			admin.POST("/disputes/:id/close", h.Close)
		}
		if h := cfg.WithdrawalHandler; h != nil {
			admin.POST("/withdrawals/:id/pending-provider", h.SetPendingProvider)
			admin.POST("/withdrawals/:id/settle", h.Settle)
			admin.POST("/withdrawals/:id/fail", h.Fail)
		}
		if h := cfg.WalletHandler; h != nil {
			admin.POST("/wallets/:userId/top-up", h.TopUp)
			admin.POST("/wallets/:userId/adjust", h.Adjust)
		}
	}

	return r
}
