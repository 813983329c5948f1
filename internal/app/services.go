package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/data/aggregates"
	"github.com/yungbote/escrow-backend/internal/data/repos"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/platform/policy"
	"github.com/yungbote/escrow-backend/internal/services"
)

type Services struct {
	Notifier    services.Notifier
	Orders      services.OrderService
	Disputes    services.DisputeService
	Wallets     services.WalletService
	Withdrawals services.WithdrawalService
}

type Aggregates struct {
	Settlement domainagg.SettlementAggregate
	Disputes   domainagg.DisputeAggregate
	Wallets    domainagg.WalletAggregate
	Withdrawal domainagg.WithdrawalAggregate
}

func wireAggregates(db *gorm.DB, log *logger.Logger, cfg Config, pol policy.Policy, metrics *observability.Metrics, r repos.Set) (Aggregates, aggregates.TxRunner) {
	log.Info("Wiring aggregates...")
	runner := aggregates.NewGormTxRunner(db, aggregates.WithLockTimeout(cfg.LockTimeout))
	base := aggregates.BaseDeps{
		DB:       db,
		Log:      log.With("component", "Aggregates"),
		Runner:   runner,
		Hooks:    aggregates.NewObservabilityHooks(metrics),
		CASGuard: aggregates.NewCASGuard(db),
	}
	return Aggregates{
		Settlement: aggregates.NewSettlementAggregate(aggregates.SettlementAggregateDeps{
			Base:           base,
			Wallets:        r.Wallets,
			WalletTx:       r.WalletTx,
			Orders:         r.Orders,
			Escrows:        r.Escrows,
			Disputes:       r.Disputes,
			DecisionWindow: pol.DecisionWindow(),
			CodeLength:     pol.Delivery.ConfirmationCodeLength,
		}),
		Disputes: aggregates.NewDisputeAggregate(aggregates.DisputeAggregateDeps{
			Base:     base,
			Wallets:  r.Wallets,
			WalletTx: r.WalletTx,
			Orders:   r.Orders,
			Escrows:  r.Escrows,
			Disputes: r.Disputes,
		}),
		Wallets: aggregates.NewWalletAggregate(aggregates.WalletAggregateDeps{
			Base:     base,
			Wallets:  r.Wallets,
			WalletTx: r.WalletTx,
		}),
		Withdrawal: aggregates.NewWithdrawalAggregate(aggregates.WithdrawalAggregateDeps{
			Base:        base,
			Wallets:     r.Wallets,
			WalletTx:    r.WalletTx,
			Withdrawals: r.Withdrawals,
		}),
	}, runner
}

func wireServices(
	log *logger.Logger,
	cfg Config,
	pol policy.Policy,
	metrics *observability.Metrics,
	r repos.Set,
	agg Aggregates,
	scheduler services.DeliveryScheduler,
) Services {
	log.Info("Wiring services...")
	cmd := services.CommandConfig{
		MaxRetries: cfg.SettlementMaxRetries,
		Policy:     pol,
		Metrics:    metrics,
	}
	notify := services.NewOutboxNotifier(log, r.OutboxEvents)
	return Services{
		Notifier:    notify,
		Orders:      services.NewOrderService(log, cmd, agg.Settlement, r.Orders, notify, scheduler),
		Disputes:    services.NewDisputeService(log, cmd, agg.Disputes, r.Disputes, r.Orders, notify),
		Wallets:     services.NewWalletService(log, cmd, agg.Wallets, r.Wallets, r.WalletTx),
		Withdrawals: services.NewWithdrawalService(log, cmd, agg.Withdrawal, r.Withdrawals, notify),
	}
}
