package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const racers = 10

// setupFileLedgerService opens a file database with a real connection pool so
// concurrent calls contend on SQLite locks instead of a single connection.
func setupFileLedgerService(t *testing.T) (*LedgerService, *database.Service, func()) {
	return newLedgerService(t, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		PingTimeout:  time.Second,
		BusyTimeout:  10 * time.Second,
	})
}

// race runs fn from n goroutines released at the same moment and returns
// every error in call order.
func race(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func countKind(transactions []models.Transaction, kind models.TransactionKind) int {
	n := 0
	for _, tx := range transactions {
		if tx.Kind == kind {
			n++
		}
	}
	return n
}

func TestConcurrentContributionsAndClaims(t *testing.T) {
	s, db, cleanup := setupFileLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "500", "ext-alice")
	deposit(t, s, "bob", "500", "ext-bob")
	id := activeCampaign(t, s, "500")

	payers := []models.Actor{alice, bob}
	errs := race(racers, func(i int) error {
		_, err := s.Contribute(ctx, payers[i%2], id, d("50"), "")
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	campaign, err := db.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.True(t, campaign.CurrentAmount.Equal(d("500")), "current %s", campaign.CurrentAmount)
	assert.Equal(t, models.CampaignOnProgress, campaign.Status)
	for _, u := range []string{"alice", "bob"} {
		w, err := db.GetUserWallet(ctx, u)
		require.NoError(t, err)
		assert.True(t, w.MainBalance.Equal(d("250")), "%s main %s", u, w.MainBalance)
		require.NoError(t, db.ReconcileWallet(ctx, u, models.WalletMain))
	}

	amount := d("100")
	errs = race(racers, func(int) error {
		_, err := s.Claim(ctx, creator, id, models.FundingContribution, &amount)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrInsufficientClaimable)
	}
	assert.Equal(t, 5, succeeded)

	campaign, err = db.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.True(t, campaign.ClaimedAmount.Equal(d("500")), "claimed %s", campaign.ClaimedAmount)
	assert.False(t, campaign.ClaimedAmount.GreaterThan(campaign.CurrentAmount))

	w, err := db.GetUserWallet(ctx, "creator")
	require.NoError(t, err)
	assert.True(t, w.ContributionsBalance.Equal(d("500")))
	require.NoError(t, db.ReconcileWallet(ctx, "creator", models.WalletContributions))
}

func TestConcurrentCloseSucceedsOnce(t *testing.T) {
	s, db, cleanup := setupFileLedgerService(t)
	defer cleanup()
	ctx := context.Background()

	deposit(t, s, "alice", "300", "ext-alice")
	deposit(t, s, "bob", "200", "ext-bob")
	id := activeCampaign(t, s, "1000")
	_, err := s.Contribute(ctx, alice, id, d("300"), "")
	require.NoError(t, err)
	_, err = s.Contribute(ctx, bob, id, d("200"), "")
	require.NoError(t, err)

	results := make([]*models.CloseResult, racers)
	errs := race(racers, func(i int) error {
		var err error
		results[i], err = s.Close(ctx, creator, id, "goal not reached")
		return err
	})

	var winner *models.CloseResult
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "more than one close succeeded")
			winner = results[i]
			continue
		}
		assert.True(t, errors.Is(err, store.ErrInvalidState), "unexpected error: %v", err)
	}
	require.NotNil(t, winner)
	assert.Equal(t, models.CampaignClosedWithRefund, winner.Status)
	assert.Equal(t, 2, winner.RefundCount)

	// one refund batch, paid once
	all, err := db.GetCampaignTransactions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, winner.RefundCount, countKind(all, models.TxRefund))

	refunded := decimal.Zero
	for _, tx := range all {
		if tx.Kind == models.TxRefund {
			refunded = refunded.Add(tx.Amount)
		}
	}
	assert.True(t, refunded.Equal(d("500")), "refunded %s", refunded)

	for _, u := range []string{"alice", "bob"} {
		require.NoError(t, db.ReconcileWallet(ctx, u, models.WalletMain))
	}
	w, err := db.GetUserWallet(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, w.MainBalance.Equal(d("300")))
}
