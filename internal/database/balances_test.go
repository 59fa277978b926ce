package database

import (
	"context"
	"testing"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestGetAllUserBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", models.WalletMain, "1")
	credit(t, service, "user1", models.WalletTips, "10")

	balances, err := service.GetAllUserBalances(ctx, "user1")
	if err != nil {
		t.Fatalf("GetAllUserBalances failed: %v", err)
	}

	found := make(map[models.Wallet]decimal.Decimal)
	for _, balance := range balances {
		found[balance.Wallet] = balance.Balance
	}

	if !found[models.WalletMain].Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected main balance 1, got %s", found[models.WalletMain].String())
	}
	if !found[models.WalletTips].Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected tips balance 10, got %s", found[models.WalletTips].String())
	}
	if !found[models.WalletContributions].IsZero() {
		t.Errorf("Expected contributions balance 0, got %s", found[models.WalletContributions].String())
	}
}

func TestReconcileWallet_MatchesJournal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "creator", models.WalletMain, "50")
	credit(t, service, "creator", models.WalletContributions, "30")

	err := service.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := tx.DebitAcrossWallets(ctx, store.MultiWalletDebit{
			UserId: "creator", Amount: decimal.NewFromInt(45), Kind: models.TxCampaignClosure,
		}); err != nil {
			return err
		}
		_, err := tx.Transfer(ctx, store.TransferParams{
			UserId: "creator", From: models.WalletMain, To: models.WalletTips,
			Amount: decimal.NewFromInt(5), Kind: models.TxConversion,
		})
		return err
	})
	if err != nil {
		t.Fatalf("Ledger operations failed: %v", err)
	}

	for _, w := range models.AllWallets {
		if err := service.ReconcileWallet(ctx, "creator", w); err != nil {
			t.Errorf("ReconcileWallet(%s) failed: %v", w, err)
		}
	}
}

func TestReconcileWallet_DetectsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	credit(t, service, "user1", models.WalletMain, "20")

	if _, err := service.db.ExecContext(ctx,
		`UPDATE account_balances SET balance = '25' WHERE user_id = 'user1' AND wallet = 'main'`); err != nil {
		t.Fatalf("Failed to tamper with balance: %v", err)
	}

	if err := service.ReconcileWallet(ctx, "user1", models.WalletMain); err == nil {
		t.Error("Expected reconciliation to fail after a direct balance write")
	}
}
