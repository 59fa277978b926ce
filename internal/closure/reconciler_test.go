package closure

import (
	"context"
	"testing"
	"time"

	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *database.Service
	reconciler *Reconciler
	creator    models.Actor
}

func setupReconciler(t *testing.T) (*fixture, func()) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  time.Second,
	})
	require.NoError(t, err)

	for _, id := range []string{"creator", "alice", "bob"} {
		_, err := db.CreateUser(ctx, id, id, id+"@example.com", models.RoleUser, true)
		require.NoError(t, err)
	}
	_, err = db.CreateUser(ctx, "admin", "admin", "admin@example.com", models.RoleAdmin, true)
	require.NoError(t, err)

	f := &fixture{
		t:          t,
		ctx:        ctx,
		db:         db,
		reconciler: NewReconciler(db),
		creator:    models.Actor{UserId: "creator", Role: models.RoleUser},
	}
	return f, db.Close
}

func (f *fixture) tx(fn func(tx store.LedgerTx) error) {
	f.t.Helper()
	require.NoError(f.t, f.db.RunInTx(f.ctx, fn))
}

func (f *fixture) deposit(userId string, wallet models.Wallet, amount string) {
	f.t.Helper()
	f.tx(func(tx store.LedgerTx) error {
		_, err := tx.Credit(f.ctx, store.WalletMovement{
			UserId: userId, Wallet: wallet, Amount: d(amount), Kind: models.TxDeposit,
		})
		return err
	})
}

func (f *fixture) campaign(minimum string) string {
	f.t.Helper()
	var id string
	f.tx(func(tx store.LedgerTx) error {
		c, err := tx.CreateCampaign(f.ctx, store.CreateCampaignParams{
			CreatorId: "creator", Title: "Community garden", MinimumAmount: d(minimum),
		})
		if err != nil {
			return err
		}
		id = c.Id
		return tx.TransitionStatus(f.ctx, id, models.CampaignPending, models.CampaignActive, "")
	})
	return id
}

// fund deposits amount for the payer and moves it into the campaign.
func (f *fixture) fund(campaignId, payerId string, kind models.FundingKind, amount string) {
	f.t.Helper()
	f.deposit(payerId, models.WalletMain, amount)

	txKind := models.TxContribution
	if kind == models.FundingTip {
		txKind = models.TxTip
	}
	f.tx(func(tx store.LedgerTx) error {
		if _, err := tx.Debit(f.ctx, store.WalletMovement{
			UserId: payerId, Wallet: models.WalletMain, Amount: d(amount), Kind: txKind, CampaignId: campaignId,
		}); err != nil {
			return err
		}
		if kind == models.FundingContribution {
			if _, err := tx.Raise(f.ctx, campaignId, d(amount)); err != nil {
				return err
			}
		}
		return tx.AppendContribution(f.ctx, &models.Contribution{
			CampaignId: campaignId, PayerId: payerId, Kind: kind, Amount: d(amount),
		})
	})
}

func (f *fixture) claim(campaignId, amount string) {
	f.t.Helper()
	f.tx(func(tx store.LedgerTx) error {
		if _, err := tx.Claim(f.ctx, campaignId, d(amount)); err != nil {
			return err
		}
		_, err := tx.Credit(f.ctx, store.WalletMovement{
			UserId: "creator", Wallet: models.WalletContributions, Amount: d(amount), Kind: models.TxClaim, CampaignId: campaignId,
		})
		return err
	})
}

// spend withdraws everything the creator holds in the contributions wallet.
func (f *fixture) spend(amount string) {
	f.t.Helper()
	f.tx(func(tx store.LedgerTx) error {
		_, err := tx.Debit(f.ctx, store.WalletMovement{
			UserId: "creator", Wallet: models.WalletContributions, Amount: d(amount), Kind: models.TxWithdrawal,
		})
		return err
	})
}

func (f *fixture) wallet(userId string) models.UserWallet {
	f.t.Helper()
	w, err := f.db.GetUserWallet(f.ctx, userId)
	require.NoError(f.t, err)
	return w
}

func (f *fixture) user(userId string) *models.User {
	f.t.Helper()
	u, err := f.db.GetUserById(f.ctx, userId)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) transactions(campaignId string, kind models.TransactionKind) []models.Transaction {
	f.t.Helper()
	all, err := f.db.GetCampaignTransactions(f.ctx, campaignId)
	require.NoError(f.t, err)
	var matching []models.Transaction
	for _, tx := range all {
		if tx.Kind == kind {
			matching = append(matching, tx)
		}
	}
	return matching
}

func byStatus(transactions []models.Transaction) (completed, failed []models.Transaction) {
	for _, tx := range transactions {
		if tx.Status == models.TxStatusFailed {
			failed = append(failed, tx)
		} else {
			completed = append(completed, tx)
		}
	}
	return completed, failed
}

func (f *fixture) contributions(campaignId string) []models.Contribution {
	f.t.Helper()
	var records []models.Contribution
	f.tx(func(tx store.LedgerTx) error {
		var err error
		records, err = tx.ListByCampaign(f.ctx, campaignId, store.ContributionFilter{})
		return err
	})
	return records
}

func sumOf(transactions []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

func TestClose_UnderFundedNothingClaimed(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "500")
	before := f.wallet("alice").MainBalance

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "goal not reached")
	require.NoError(t, err)

	assert.Equal(t, models.CampaignClosedWithRefund, result.Status)
	assert.Equal(t, string(OutcomePlatformRefund), result.Outcome)
	assert.False(t, result.CreatorFlagged)
	assert.True(t, f.wallet("alice").MainBalance.Sub(before).Equal(d("500")))
	assert.False(t, f.user("creator").IsFlagged)
}

func TestClose_FraudWithEmptyCreatorWallet(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "500")
	f.claim(id, "500")
	f.spend("500")
	require.True(t, f.wallet("creator").Total().IsZero())

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)

	assert.Equal(t, models.CampaignFlagged, result.Status)
	assert.Equal(t, string(OutcomeFraudFlag), result.Outcome)
	assert.True(t, result.CreatorFlagged)
	assert.True(t, result.ReclaimedTotal.IsZero())
	assert.True(t, result.UnrecoveredTotal.Equal(d("500")))

	creator := f.user("creator")
	assert.True(t, creator.IsFlagged)
	assert.True(t, creator.IsSuspended)
	assert.NotEmpty(t, creator.FlagReason)

	audit, err := f.db.GetAuditLog(f.ctx, "creator")
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "flag_and_suspend", audit[0].Action)

	campaign, err := f.db.GetCampaign(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignFlagged, campaign.Status)

	_, failed := byStatus(f.transactions(id, models.TxContributionReclaim))
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Amount.Equal(d("-500")))
	assert.Equal(t, "creator", failed[0].UserId)
}

func TestClose_FraudReclaimsWhatCreatorHolds(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "300")
	f.fund(id, "bob", models.FundingContribution, "200")
	f.fund(id, "bob", models.FundingTip, "20")
	f.claim(id, "400")
	f.spend("250")

	aliceBefore := f.wallet("alice").MainBalance
	bobBefore := f.wallet("bob").MainBalance

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignFlagged, result.Status)

	// FIFO: alice's 300 is fully claimed, bob's first 100 is claimed and 100 pooled.
	// The creator holds 150, which all goes to alice.
	assert.True(t, result.ReclaimedTotal.Equal(d("150")), "reclaimed %s", result.ReclaimedTotal)
	assert.True(t, result.UnrecoveredTotal.Equal(d("250")), "unrecovered %s", result.UnrecoveredTotal)
	assert.True(t, f.wallet("alice").MainBalance.Sub(aliceBefore).Equal(d("150")))
	assert.True(t, f.wallet("bob").MainBalance.Sub(bobBefore).Equal(d("120")))
	assert.True(t, f.wallet("creator").Total().IsZero())

	completed, failed := byStatus(f.transactions(id, models.TxContributionReclaim))
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Amount.Equal(d("-150")))
	assert.True(t, f.user("creator").IsSuspended)

	// Each contribution keeps a record of what it is still owed.
	require.Len(t, failed, 2)
	assert.True(t, sumOf(failed).Equal(d("-250")), "unrecovered %s", sumOf(failed))
	owed := map[string]decimal.Decimal{}
	for _, c := range f.contributions(id) {
		for _, tx := range failed {
			if tx.Reference == c.Id {
				owed[c.PayerId] = tx.Amount
			}
		}
	}
	assert.True(t, owed["alice"].Equal(d("-150")), "alice owed %s", owed["alice"])
	assert.True(t, owed["bob"].Equal(d("-100")), "bob owed %s", owed["bob"])
}

func TestClose_UnderFundedCreatorCoversClaim(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "400")
	f.claim(id, "300")
	f.deposit("creator", models.WalletMain, "50")

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)

	assert.Equal(t, string(OutcomeCreatorRefund), result.Outcome)
	assert.Equal(t, models.CampaignClosedWithRefund, result.Status)
	assert.True(t, result.CreatorDebited.Equal(d("300")))
	assert.True(t, result.RefundedTotal.Equal(d("400")))

	w := f.wallet("creator")
	assert.True(t, w.ContributionsBalance.IsZero())
	assert.True(t, w.MainBalance.Equal(d("50")))
	assert.False(t, f.user("creator").IsFlagged)
}

func TestClose_VoluntaryRefundDrainsInOrder(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "1200")
	f.fund(id, "bob", models.FundingContribution, "800")
	f.deposit("creator", models.WalletContributions, "500")
	f.deposit("creator", models.WalletTips, "500")
	f.deposit("creator", models.WalletMain, "1500")

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "changed plans")
	require.NoError(t, err)

	assert.Equal(t, models.CampaignClosedWithRefund, result.Status)
	assert.Equal(t, string(OutcomeVoluntaryRefund), result.Outcome)
	assert.False(t, result.CreatorFlagged)
	assert.True(t, result.CreatorDebited.Equal(d("2000")))

	w := f.wallet("creator")
	assert.True(t, w.ContributionsBalance.IsZero())
	assert.True(t, w.TipsBalance.IsZero())
	assert.True(t, w.MainBalance.Equal(d("500")))

	debits := f.transactions(id, models.TxCampaignClosure)
	require.Len(t, debits, 1)
	assert.Equal(t, "contributions+tips+main", debits[0].Wallet)
	assert.True(t, debits[0].Amount.Equal(d("-2000")))
	assert.False(t, f.user("creator").IsFlagged)
}

func TestClose_MinimumReachedCreatorShort(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("100")
	f.fund(id, "alice", models.FundingContribution, "300")
	aliceBefore := f.wallet("alice").MainBalance

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)

	assert.Equal(t, string(OutcomeAutoSuspend), result.Outcome)
	assert.Equal(t, models.CampaignFlagged, result.Status)
	assert.True(t, result.Deficit.Equal(d("300")))
	assert.Zero(t, result.RefundCount)
	assert.True(t, f.wallet("alice").MainBalance.Equal(aliceBefore))
	assert.Empty(t, f.transactions(id, models.TxRefund))
	assert.True(t, f.user("creator").IsSuspended)
}

func TestClose_NoFundsReceived(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)

	assert.Equal(t, models.CampaignClosed, result.Status)
	assert.Empty(t, f.transactions(id, models.TxRefund))
	assert.False(t, result.CreatorFlagged)

	closures := f.transactions(id, models.TxCampaignClosure)
	require.Len(t, closures, 1)
	assert.True(t, closures[0].Amount.IsZero())
}

func TestClose_IsIdempotent(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")
	f.fund(id, "alice", models.FundingContribution, "500")

	_, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)

	before, err := f.db.GetCampaignTransactions(f.ctx, id)
	require.NoError(t, err)

	_, err = f.reconciler.Close(f.ctx, f.creator, id, "")
	require.ErrorIs(t, err, store.ErrInvalidState)

	after, err := f.db.GetCampaignTransactions(f.ctx, id)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestClose_OnlyCreatorOrStaff(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("1000")

	_, err := f.reconciler.Close(f.ctx, models.Actor{UserId: "alice", Role: models.RoleUser}, id, "")
	require.ErrorIs(t, err, store.ErrUnauthorized)

	result, err := f.reconciler.Close(f.ctx, models.Actor{UserId: "admin", Role: models.RoleAdmin}, id, "")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignClosed, result.Status)
}

func TestClose_RefundConservation(t *testing.T) {
	f, cleanup := setupReconciler(t)
	defer cleanup()

	id := f.campaign("5000")
	f.fund(id, "alice", models.FundingContribution, "120.50")
	f.fund(id, "bob", models.FundingContribution, "79.25")
	f.fund(id, "alice", models.FundingTip, "5.75")
	f.fund(id, "bob", models.FundingTip, "3")

	result, err := f.reconciler.Close(f.ctx, f.creator, id, "")
	require.NoError(t, err)
	require.Equal(t, models.CampaignClosedWithRefund, result.Status)

	refunds := f.transactions(id, models.TxRefund)
	assert.Len(t, refunds, 4)
	assert.True(t, sumOf(refunds).Equal(d("208.5")), "refunded %s", sumOf(refunds))
	assert.True(t, result.RefundedTotal.Equal(d("208.5")))

	for _, user := range []string{"alice", "bob"} {
		for _, w := range models.AllWallets {
			assert.NoError(t, f.db.ReconcileWallet(f.ctx, user, w))
		}
	}
}
