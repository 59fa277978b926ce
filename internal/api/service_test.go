package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin   = models.Actor{UserId: "admin", Role: models.RoleAdmin}
	support = models.Actor{UserId: "support", Role: models.RoleSupport}
	creator = models.Actor{UserId: "creator", Role: models.RoleUser}
	alice   = models.Actor{UserId: "alice", Role: models.RoleUser}
	bob     = models.Actor{UserId: "bob", Role: models.RoleUser}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupLedgerService(t *testing.T) (*LedgerService, *database.Service, func()) {
	return newLedgerService(t, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  time.Second,
	})
}

func newLedgerService(t *testing.T, cfg models.DatabaseConfig) (*LedgerService, *database.Service, func()) {
	ctx := context.Background()
	db, err := database.NewService(ctx, cfg)
	require.NoError(t, err)

	users := []struct {
		id   string
		role models.Role
		kyc  bool
	}{
		{"admin", models.RoleAdmin, true},
		{"support", models.RoleSupport, true},
		{"creator", models.RoleUser, true},
		{"alice", models.RoleUser, false},
		{"bob", models.RoleUser, false},
	}
	for _, u := range users {
		_, err := db.CreateUser(ctx, u.id, u.id, u.id+"@example.com", u.role, u.kyc)
		require.NoError(t, err)
	}

	return NewLedgerService(db), db, db.Close
}

func deposit(t *testing.T, s *LedgerService, userId, amount, ref string) {
	t.Helper()
	_, err := s.Deposit(context.Background(), admin, userId, d(amount), ref)
	require.NoError(t, err)
}

func activeCampaign(t *testing.T, s *LedgerService, minimum string) string {
	t.Helper()
	ctx := context.Background()
	view, err := s.CreateCampaign(ctx, creator, "Library roof", d(minimum))
	require.NoError(t, err)
	require.Equal(t, models.CampaignPending, view.Status)

	view, err = s.ChangeStatus(ctx, support, view.Id, models.CampaignActive)
	require.NoError(t, err)
	require.Equal(t, models.CampaignActive, view.Status)
	return view.Id
}

func TestHealthCheck(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()

	assert.NoError(t, s.HealthCheck(context.Background()))
}

func TestContribute_MovesFundsAndProgressesCampaign(t *testing.T) {
	s, db, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "100", "dep-1")
	campaignId := activeCampaign(t, s, "50")

	result, err := s.Contribute(ctx, alice, campaignId, d("30"), "good luck")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignActive, result.CampaignStatus)
	assert.True(t, result.Wallet.MainBalance.Equal(d("70")))

	result, err = s.Contribute(ctx, alice, campaignId, d("20"), "")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignOnProgress, result.CampaignStatus)
	assert.True(t, result.CurrentAmount.Equal(d("50")))

	events, err := db.ListPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventContributionReceived, events[0].EventType)
	assert.Equal(t, "creator", events[0].UserId)
}

func TestContribute_Rejections(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "10", "dep-1")
	campaignId := activeCampaign(t, s, "50")

	_, err := s.Contribute(ctx, alice, campaignId, d("11"), "")
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	var shortfall *store.InsufficientBalanceError
	require.True(t, errors.As(err, &shortfall))
	assert.True(t, shortfall.Shortfall().Equal(d("1")))

	_, err = s.Contribute(ctx, alice, campaignId, d("0"), "")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.Contribute(ctx, alice, "missing", d("1"), "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	pending, err := s.CreateCampaign(ctx, creator, "Not yet live", d("5"))
	require.NoError(t, err)
	_, err = s.Contribute(ctx, alice, pending.Id, d("1"), "")
	assert.ErrorIs(t, err, store.ErrInvalidState)

	wallet, err := s.GetWallet(ctx, alice, "")
	require.NoError(t, err)
	assert.True(t, wallet.MainBalance.Equal(d("10")))
}

func TestTip_DoesNotCountTowardMinimum(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "bob", "25", "dep-1")
	campaignId := activeCampaign(t, s, "20")

	result, err := s.Tip(ctx, bob, campaignId, d("25"), "thanks")
	require.NoError(t, err)
	assert.True(t, result.CurrentAmount.IsZero())
	assert.Equal(t, models.CampaignActive, result.CampaignStatus)

	view, err := s.GetCampaign(ctx, campaignId)
	require.NoError(t, err)
	assert.True(t, view.TipsTotal.Equal(d("25")))
	assert.True(t, view.TipsClaimed.IsZero())
}

func TestClaim(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "100", "dep-1")
	campaignId := activeCampaign(t, s, "50")
	_, err := s.Contribute(ctx, alice, campaignId, d("80"), "")
	require.NoError(t, err)
	_, err = s.Tip(ctx, alice, campaignId, d("5"), "")
	require.NoError(t, err)

	t.Run("partial claim", func(t *testing.T) {
		amount := d("30")
		result, err := s.Claim(ctx, creator, campaignId, models.FundingContribution, &amount)
		require.NoError(t, err)
		assert.True(t, result.Remaining.Equal(d("50")))
		assert.True(t, result.Wallet.ContributionsBalance.Equal(d("30")))
	})

	t.Run("over claim rejected", func(t *testing.T) {
		amount := d("51")
		_, err := s.Claim(ctx, creator, campaignId, models.FundingContribution, &amount)
		assert.ErrorIs(t, err, store.ErrInsufficientClaimable)
	})

	t.Run("non creator rejected", func(t *testing.T) {
		_, err := s.Claim(ctx, alice, campaignId, models.FundingContribution, nil)
		assert.ErrorIs(t, err, store.ErrUnauthorized)
	})

	t.Run("claim remaining", func(t *testing.T) {
		result, err := s.Claim(ctx, creator, campaignId, models.FundingContribution, nil)
		require.NoError(t, err)
		assert.True(t, result.ClaimedAmount.Equal(d("50")))
		assert.True(t, result.Remaining.IsZero())

		_, err = s.Claim(ctx, creator, campaignId, models.FundingContribution, nil)
		assert.ErrorIs(t, err, store.ErrInsufficientClaimable)
	})

	t.Run("tips", func(t *testing.T) {
		result, err := s.Claim(ctx, creator, campaignId, models.FundingTip, nil)
		require.NoError(t, err)
		assert.True(t, result.ClaimedAmount.Equal(d("5")))
		assert.True(t, result.Wallet.TipsBalance.Equal(d("5")))

		view, err := s.GetCampaign(ctx, campaignId)
		require.NoError(t, err)
		assert.True(t, view.TipsClaimed.Equal(d("5")))
		assert.True(t, view.ClaimedAmount.Equal(d("80")))
	})
}

func TestClaim_RequiresKyc(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "10", "dep-1")
	campaignId := activeCampaign(t, s, "5")
	_, err := s.Contribute(ctx, alice, campaignId, d("10"), "")
	require.NoError(t, err)

	_, err = s.SetKyc(ctx, support, "creator", false)
	require.NoError(t, err)

	_, err = s.Claim(ctx, creator, campaignId, models.FundingContribution, nil)
	assert.ErrorIs(t, err, store.ErrKycRequired)

	// staff bypass the KYC requirement and pay out to the creator
	result, err := s.Claim(ctx, support, campaignId, models.FundingContribution, nil)
	require.NoError(t, err)
	assert.True(t, result.Wallet.ContributionsBalance.Equal(d("10")))
	assert.Equal(t, "creator", result.Wallet.UserId)
}

func TestChangeStatus(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "100", "dep-1")

	t.Run("activation requires staff", func(t *testing.T) {
		view, err := s.CreateCampaign(ctx, creator, "Pending", d("10"))
		require.NoError(t, err)
		_, err = s.ChangeStatus(ctx, creator, view.Id, models.CampaignActive)
		assert.ErrorIs(t, err, store.ErrUnauthorized)
	})

	t.Run("completion requires minimum", func(t *testing.T) {
		campaignId := activeCampaign(t, s, "50")
		_, err := s.Contribute(ctx, alice, campaignId, d("20"), "")
		require.NoError(t, err)

		_, err = s.ChangeStatus(ctx, creator, campaignId, models.CampaignCompleted)
		assert.ErrorIs(t, err, store.ErrInvalidState)

		_, err = s.Contribute(ctx, alice, campaignId, d("30"), "")
		require.NoError(t, err)
		view, err := s.ChangeStatus(ctx, creator, campaignId, models.CampaignCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignCompleted, view.Status)

		_, err = s.Contribute(ctx, alice, campaignId, d("1"), "")
		assert.ErrorIs(t, err, store.ErrInvalidState)
	})

	t.Run("cancel only without funds", func(t *testing.T) {
		empty := activeCampaign(t, s, "50")
		view, err := s.ChangeStatus(ctx, creator, empty, models.CampaignCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignCancelled, view.Status)

		funded := activeCampaign(t, s, "50")
		_, err = s.Contribute(ctx, alice, funded, d("1"), "")
		require.NoError(t, err)
		_, err = s.ChangeStatus(ctx, creator, funded, models.CampaignCancelled)
		assert.ErrorIs(t, err, store.ErrInvalidState)
	})

	t.Run("other users rejected", func(t *testing.T) {
		campaignId := activeCampaign(t, s, "50")
		_, err := s.ChangeStatus(ctx, bob, campaignId, models.CampaignCancelled)
		assert.ErrorIs(t, err, store.ErrUnauthorized)
	})

	t.Run("closure statuses rejected", func(t *testing.T) {
		campaignId := activeCampaign(t, s, "50")
		_, err := s.ChangeStatus(ctx, creator, campaignId, models.CampaignFlagged)
		assert.ErrorIs(t, err, store.ErrValidation)
	})
}

func TestClose_RefundsUnderFundedCampaign(t *testing.T) {
	s, db, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "40", "dep-1")
	campaignId := activeCampaign(t, s, "100")
	_, err := s.Contribute(ctx, alice, campaignId, d("40"), "")
	require.NoError(t, err)

	result, err := s.Close(ctx, creator, campaignId, "not enough interest")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignClosedWithRefund, result.Status)
	assert.Equal(t, 1, result.RefundCount)

	wallet, err := s.GetWallet(ctx, alice, "")
	require.NoError(t, err)
	assert.True(t, wallet.MainBalance.Equal(d("40")))
	require.NoError(t, db.ReconcileWallet(ctx, "alice", models.WalletMain))

	_, err = s.Close(ctx, creator, campaignId, "again")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestDeposit(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	result, err := s.Deposit(ctx, admin, "alice", d("12.50"), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxDeposit, result.Kind)
	assert.True(t, result.Wallet.MainBalance.Equal(d("12.50")))

	_, err = s.Deposit(ctx, admin, "alice", d("12.50"), "ext-1")
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)

	_, err = s.Deposit(ctx, alice, "alice", d("1"), "ext-2")
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	_, err = s.Deposit(ctx, admin, "ghost", d("1"), "ext-3")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Deposit(ctx, admin, "alice", d("1"), "")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestWithdrawAndSettle(t *testing.T) {
	s, db, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "100", "dep-1")

	completed, err := s.Withdraw(ctx, alice, d("30"))
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, completed.Status)
	assert.True(t, completed.Wallet.MainBalance.Equal(d("70")))

	failed, err := s.Withdraw(ctx, alice, d("20"))
	require.NoError(t, err)

	_, err = s.SettleWithdrawal(ctx, alice, completed.TransactionId, models.TxStatusCompleted)
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	result, err := s.SettleWithdrawal(ctx, admin, completed.TransactionId, models.TxStatusCompleted)
	require.NoError(t, err)
	assert.True(t, result.Wallet.MainBalance.Equal(d("50")))

	result, err = s.SettleWithdrawal(ctx, admin, failed.TransactionId, models.TxStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusFailed, result.Status)
	assert.True(t, result.Wallet.MainBalance.Equal(d("70")))

	_, err = s.SettleWithdrawal(ctx, admin, failed.TransactionId, models.TxStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	_, err = s.Withdraw(ctx, alice, d("70.01"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	require.NoError(t, db.ReconcileWallet(ctx, "alice", models.WalletMain))
}

func TestConvert(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "60", "dep-1")
	campaignId := activeCampaign(t, s, "50")
	_, err := s.Contribute(ctx, alice, campaignId, d("60"), "")
	require.NoError(t, err)
	_, err = s.Claim(ctx, creator, campaignId, models.FundingContribution, nil)
	require.NoError(t, err)

	result, err := s.Convert(ctx, creator, models.WalletContributions, d("45"))
	require.NoError(t, err)
	assert.Equal(t, models.TxConversion, result.Kind)
	assert.True(t, result.Wallet.MainBalance.Equal(d("45")))
	assert.True(t, result.Wallet.ContributionsBalance.Equal(d("15")))

	_, err = s.Convert(ctx, creator, models.WalletMain, d("1"))
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.Convert(ctx, creator, models.WalletContributions, d("16"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)
}

func TestGetTransactionHistory(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "10", "dep-1")
	deposit(t, s, "alice", "5", "dep-2")

	records, err := s.GetTransactionHistory(ctx, alice, "", 0, -1)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = s.GetTransactionHistory(ctx, bob, "alice", 10, 0)
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	records, err = s.GetTransactionHistory(ctx, support, "alice", 1, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSetRole(t *testing.T) {
	s, _, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.SetRole(ctx, support, "alice", models.RoleSupport, "promotion")
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	user, err := s.SetRole(ctx, admin, "alice", models.RoleSupport, "promotion")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSupport, user.Role)

	entries, err := s.GetAuditLog(ctx, admin, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "role_change", entries[len(entries)-1].Action)

	_, err = s.GetAuditLog(ctx, alice, "alice")
	assert.ErrorIs(t, err, store.ErrUnauthorized)
}

func TestSuspendedUserCannotMoveFunds(t *testing.T) {
	s, db, cleanup := setupLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "10", "dep-1")
	require.NoError(t, db.RunInTx(ctx, func(tx store.LedgerTx) error {
		return tx.FlagUser(ctx, "admin", "alice", "chargeback", true)
	}))

	_, err := s.Withdraw(ctx, alice, d("1"))
	assert.ErrorIs(t, err, store.ErrUnauthorized)
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(store.ErrNotFound))
	assert.True(t, IsBusinessError(&store.InsufficientBalanceError{}))
	assert.False(t, IsBusinessError(errors.New("disk full")))
}
