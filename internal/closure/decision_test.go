package closure

import (
	"testing"

	"crowdfund-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		in      Inputs
		outcome Outcome
		status  models.CampaignStatus
		debit   string
		deficit string
	}{
		{
			name:    "no funds received",
			in:      Inputs{HasReceivedFunds: false, IsUnderFunded: true, CreatorTotalBalance: d("50")},
			outcome: OutcomeCleanClose,
			status:  models.CampaignClosed,
			debit:   "0",
			deficit: "0",
		},
		{
			name:    "under-funded, nothing withdrawn",
			in:      Inputs{HasReceivedFunds: true, IsUnderFunded: true, ActiveTotal: d("500")},
			outcome: OutcomePlatformRefund,
			status:  models.CampaignClosedWithRefund,
			debit:   "0",
			deficit: "0",
		},
		{
			name: "under-funded, withdrawn, creator covers",
			in: Inputs{HasReceivedFunds: true, IsUnderFunded: true, HasWithdrawn: true,
				ClaimedAmount: d("300"), CreatorTotalBalance: d("300"), ActiveTotal: d("500")},
			outcome: OutcomeCreatorRefund,
			status:  models.CampaignClosedWithRefund,
			debit:   "300",
			deficit: "0",
		},
		{
			name: "under-funded, withdrawn, creator short",
			in: Inputs{HasReceivedFunds: true, IsUnderFunded: true, HasWithdrawn: true,
				ClaimedAmount: d("500"), CreatorTotalBalance: d("120"), ActiveTotal: d("500")},
			outcome: OutcomeFraudFlag,
			status:  models.CampaignFlagged,
			debit:   "0",
			deficit: "380",
		},
		{
			name: "minimum reached, creator covers full refund",
			in: Inputs{HasReceivedFunds: true, ClaimedAmount: d("0"),
				CreatorTotalBalance: d("2000"), ActiveTotal: d("2000")},
			outcome: OutcomeVoluntaryRefund,
			status:  models.CampaignClosedWithRefund,
			debit:   "2000",
			deficit: "0",
		},
		{
			name: "minimum reached, creator short",
			in: Inputs{HasReceivedFunds: true, HasWithdrawn: true, ClaimedAmount: d("1500"),
				CreatorTotalBalance: d("400"), ActiveTotal: d("2000")},
			outcome: OutcomeAutoSuspend,
			status:  models.CampaignFlagged,
			debit:   "0",
			deficit: "1600",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Decide(tt.in)
			assert.Equal(t, tt.outcome, plan.Outcome)
			assert.Equal(t, tt.status, plan.Status)
			assert.True(t, plan.CreatorDebit.Equal(d(tt.debit)), "creator debit %s", plan.CreatorDebit)
			assert.True(t, plan.Deficit.Equal(d(tt.deficit)), "deficit %s", plan.Deficit)
			assert.True(t, plan.Status.IsTerminal())
			assert.Equal(t, plan.FlagCreator, plan.Status == models.CampaignFlagged)
		})
	}
}

func TestAllocateClaimed_FIFO(t *testing.T) {
	records := []models.Contribution{
		{Id: "c1", Kind: models.FundingContribution, Amount: d("100")},
		{Id: "t1", Kind: models.FundingTip, Amount: d("10")},
		{Id: "c2", Kind: models.FundingContribution, Amount: d("200")},
		{Id: "c3", Kind: models.FundingContribution, Amount: d("50")},
	}

	allocations := AllocateClaimed(records, d("250"))
	require.Len(t, allocations, 4)

	expected := []struct{ claimed, pooled string }{
		{"100", "0"},
		{"0", "10"},
		{"150", "50"},
		{"0", "50"},
	}
	for i, want := range expected {
		a := allocations[i]
		assert.True(t, a.Claimed.Equal(d(want.claimed)), "%s claimed %s", a.Contribution.Id, a.Claimed)
		assert.True(t, a.Pooled.Equal(d(want.pooled)), "%s pooled %s", a.Contribution.Id, a.Pooled)
		assert.True(t, a.Claimed.Add(a.Pooled).Equal(a.Contribution.Amount))
	}
}
