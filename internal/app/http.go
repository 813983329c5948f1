package app

import (
	"context"

	"gorm.io/gorm"

	httpx "github.com/yungbote/escrow-backend/internal/http"
	httpH "github.com/yungbote/escrow-backend/internal/http/handlers"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/platform/policy"
)

func wireHTTP(log *logger.Logger, cfg Config, pol policy.Policy, db *gorm.DB, metrics *observability.Metrics, svc Services, c Clients) *httpx.Server {
	log.Info("Wiring handlers...")
	currency := pol.DefaultCurrency()
	ping := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return httpx.NewServer(httpx.RouterConfig{
		Log:         log,
		Metrics:     metrics,
		Idempotency: c.Idempotency,
		CORSOrigins: cfg.CORSOrigins,
		ServiceName: cfg.ServiceName,

		HealthHandler:     httpH.NewHealthHandler(ping),
		OrderHandler:      httpH.NewOrderHandler(svc.Orders, currency),
		DisputeHandler:    httpH.NewDisputeHandler(svc.Disputes),
		WalletHandler:     httpH.NewWalletHandler(svc.Wallets, currency),
		WithdrawalHandler: httpH.NewWithdrawalHandler(svc.Withdrawals, currency),
	})
}
