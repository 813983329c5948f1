package aggregates

import (
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/escrow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

func TestLedgerSaveRejectsStaleWallet(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	seeded := repotest.SeedWallet(t, h.ctx, h.tx, userID, "100")

	stale := h.wallet(t, userID)
	if err := h.tx.Model(&types.Wallet{}).Where("id = ?", seeded.ID).Update("version", stale.Version+1).Error; err != nil {
		t.Fatalf("bump version: %v", err)
	}

	base := BaseDeps{DB: h.tx, Runner: NewGormTxRunner(h.tx), CASGuard: NewCASGuard(h.tx)}
	l := ledger{base: base.withDefaults(), wallets: h.set.Wallets, txs: h.set.WalletTx}
	err := executeWrite(h.ctx, base, "test.ledger.stale", func(dbc dbctx.Context) error {
		move, err := stale.Credit(repotest.PKR("10"), "bonus", wallet.Reference{Type: wallet.RefTopUp})
		if err != nil {
			return err
		}
		return l.save(dbc, stale, move)
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale save: want conflict got %v", err)
	}
	h.assertBalances(t, userID, "100", "0")
	rows, total, err := h.set.WalletTx.ListByWallet(h.dbc, seeded.ID, 10, 0)
	if err != nil || total != 0 || len(rows) != 0 {
		t.Fatalf("no ledger rows expected: %d %v", total, err)
	}
}

func TestLedgerLockPairOpensMissingWallets(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	repotest.SeedWallet(t, h.ctx, h.tx, a, "5")
	l := ledger{base: BaseDeps{DB: h.tx}.withDefaults(), wallets: h.set.Wallets, txs: h.set.WalletTx}

	buyer, seller, err := l.lockPair(h.dbc, a, b, "PKR")
	if err != nil {
		t.Fatalf("lockPair: %v", err)
	}
	if buyer.UserID != a || seller.UserID != b {
		t.Fatalf("lockPair swapped roles: buyer=%s seller=%s", buyer.UserID, seller.UserID)
	}
	if !seller.Balance.IsZero() || seller.Currency() != "PKR" {
		t.Fatalf("opened wallet: %+v", seller)
	}
	again, other, err := l.lockPair(h.dbc, b, a, "PKR")
	if err != nil || again.ID != seller.ID || other.UserID != a {
		t.Fatalf("second lockPair: %v", err)
	}
}

func TestWalletAggregateTopUpAndAdjust(t *testing.T) {
	h := newHarness(t)
	userID, adminID := uuid.New(), uuid.New()

	ensured, err := h.wallets.Ensure(h.ctx, domainagg.EnsureWalletInput{UserID: userID, Currency: "pkr"})
	if err != nil || ensured.Wallet.Currency() != "PKR" {
		t.Fatalf("Ensure: %v %+v", err, ensured.Wallet)
	}
	again, err := h.wallets.Ensure(h.ctx, domainagg.EnsureWalletInput{UserID: userID, Currency: "PKR"})
	if err != nil || again.Wallet.ID != ensured.Wallet.ID {
		t.Fatalf("Ensure is not idempotent: %v", err)
	}

	top, err := h.wallets.TopUp(h.ctx, domainagg.WalletCreditInput{UserID: userID, ActorID: userID, Amount: repotest.PKR("120")})
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if top.Transaction == nil || top.Transaction.Type != wallet.TxCredit {
		t.Fatalf("TopUp transaction: %+v", top.Transaction)
	}

	if _, err := h.wallets.Adjust(h.ctx, domainagg.WalletAdjustInput{UserID: userID, AdminID: adminID, Amount: repotest.PKR("-20"), Reason: "chargeback"}); err != nil {
		t.Fatalf("Adjust debit: %v", err)
	}
	h.assertBalances(t, userID, "100", "0")

	_, err = h.wallets.Adjust(h.ctx, domainagg.WalletAdjustInput{UserID: userID, AdminID: adminID, Amount: repotest.PKR("-101"), Reason: "too much"})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("overdraw adjust: want precondition_failed got %v", err)
	}
	_, err = h.wallets.Adjust(h.ctx, domainagg.WalletAdjustInput{UserID: userID, Amount: repotest.PKR("1"), Reason: "x"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("adjust without admin: want forbidden got %v", err)
	}
	_, err = h.wallets.TopUp(h.ctx, domainagg.WalletCreditInput{UserID: userID, Amount: repotest.PKR("0")})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("zero top-up: want validation got %v", err)
	}
}
