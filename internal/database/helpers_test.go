package database

import (
	"context"
	"database/sql"
	"testing"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	// Use the actual schema initialization
	service, err := newService(db)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	ctx := context.Background()
	for _, u := range []struct {
		id    string
		email string
		role  models.Role
	}{
		{"user1", "user1@example.com", models.RoleUser},
		{"user2", "user2@example.com", models.RoleUser},
		{"creator", "creator@example.com", models.RoleUser},
		{"admin", "admin@example.com", models.RoleAdmin},
	} {
		if _, err := service.CreateUser(ctx, u.id, u.id, u.email, u.role, true); err != nil {
			t.Fatalf("Failed to insert test user: %v", err)
		}
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func credit(t *testing.T, s *Service, userId string, wallet models.Wallet, amount string) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(tx store.LedgerTx) error {
		_, err := tx.Credit(context.Background(), store.WalletMovement{
			UserId: userId,
			Wallet: wallet,
			Amount: decimal.RequireFromString(amount),
			Kind:   models.TxDeposit,
		})
		return err
	})
	if err != nil {
		t.Fatalf("Failed to credit %s wallet of %s: %v", wallet, userId, err)
	}
}

func openCampaign(t *testing.T, s *Service, creatorId, minimum string) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	var campaign *models.Campaign
	err := s.RunInTx(ctx, func(tx store.LedgerTx) error {
		var err error
		campaign, err = tx.CreateCampaign(ctx, store.CreateCampaignParams{
			CreatorId:     creatorId,
			Title:         "Test campaign",
			MinimumAmount: decimal.RequireFromString(minimum),
		})
		if err != nil {
			return err
		}
		return tx.TransitionStatus(ctx, campaign.Id, models.CampaignPending, models.CampaignActive, "")
	})
	if err != nil {
		t.Fatalf("Failed to open campaign: %v", err)
	}
	campaign.Status = models.CampaignActive
	return campaign
}

func walletOf(t *testing.T, s *Service, userId string) models.UserWallet {
	t.Helper()
	w, err := s.GetUserWallet(context.Background(), userId)
	if err != nil {
		t.Fatalf("GetUserWallet failed: %v", err)
	}
	return w
}
