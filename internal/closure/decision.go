/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package closure

import (
	"crowdfund-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Outcome names the branch of the closure decision tree that was taken.
type Outcome string

const (
	OutcomeCleanClose      Outcome = "clean_close"
	OutcomePlatformRefund  Outcome = "platform_refund"
	OutcomeCreatorRefund   Outcome = "creator_refund"
	OutcomeFraudFlag       Outcome = "fraud_flag"
	OutcomeVoluntaryRefund Outcome = "voluntary_refund"
	OutcomeAutoSuspend     Outcome = "auto_suspend"
)

// Inputs is the funding state the decision is computed from.
type Inputs struct {
	HasReceivedFunds    bool
	IsUnderFunded       bool
	HasWithdrawn        bool
	ClaimedAmount       decimal.Decimal
	CreatorTotalBalance decimal.Decimal
	// ActiveTotal is the sum of every contribution and tip still active.
	ActiveTotal decimal.Decimal
}

// Plan is what the executor must apply for a close request.
type Plan struct {
	Outcome Outcome
	Status  models.CampaignStatus

	// CreatorDebit is taken from the creator with DebitAcrossWallets before
	// payers are refunded. Zero when the creator pays nothing up front.
	CreatorDebit decimal.Decimal
	DebitKind    models.TransactionKind

	RefundPayers bool
	// FromFloat refunds come from platform float instead of the campaign pool.
	FromFloat bool
	// Reclaim runs the per-contribution reclaim of already-claimed funds.
	Reclaim bool

	FlagCreator bool
	FlagReason  string
	Deficit     decimal.Decimal
}

const (
	reasonFraud       = "withdrew funds from an under-funded campaign and cannot cover refunds"
	reasonAutoSuspend = "insufficient balance to refund raised funds on closure"
)

// Decide evaluates the closure branches in order; the first match wins.
func Decide(in Inputs) Plan {
	switch {
	case !in.HasReceivedFunds:
		return Plan{
			Outcome: OutcomeCleanClose,
			Status:  models.CampaignClosed,
		}

	case in.IsUnderFunded && !in.HasWithdrawn:
		return Plan{
			Outcome:      OutcomePlatformRefund,
			Status:       models.CampaignClosedWithRefund,
			RefundPayers: true,
			FromFloat:    true,
		}

	case in.IsUnderFunded && in.CreatorTotalBalance.GreaterThanOrEqual(in.ClaimedAmount):
		return Plan{
			Outcome:      OutcomeCreatorRefund,
			Status:       models.CampaignClosedWithRefund,
			CreatorDebit: in.ClaimedAmount,
			DebitKind:    models.TxContributionReclaim,
			RefundPayers: true,
		}

	case in.IsUnderFunded:
		return Plan{
			Outcome:     OutcomeFraudFlag,
			Status:      models.CampaignFlagged,
			Reclaim:     true,
			FlagCreator: true,
			FlagReason:  reasonFraud,
			Deficit:     in.ClaimedAmount.Sub(in.CreatorTotalBalance),
		}

	case in.CreatorTotalBalance.GreaterThanOrEqual(in.ActiveTotal):
		return Plan{
			Outcome:      OutcomeVoluntaryRefund,
			Status:       models.CampaignClosedWithRefund,
			CreatorDebit: in.ActiveTotal,
			DebitKind:    models.TxCampaignClosure,
			RefundPayers: true,
		}

	default:
		return Plan{
			Outcome:     OutcomeAutoSuspend,
			Status:      models.CampaignFlagged,
			FlagCreator: true,
			FlagReason:  reasonAutoSuspend,
			Deficit:     in.ActiveTotal.Sub(in.CreatorTotalBalance),
		}
	}
}

// Allocation splits one funding record into the part already paid out to the
// creator and the part still pooled in the campaign.
type Allocation struct {
	Contribution models.Contribution
	Claimed      decimal.Decimal
	Pooled       decimal.Decimal
}

// AllocateClaimed attributes the campaign's claimed total to contributions
// oldest first. Tips never count against claimedAmount, so they are fully
// pooled. The input must already be in creation order.
func AllocateClaimed(records []models.Contribution, claimedAmount decimal.Decimal) []Allocation {
	remaining := claimedAmount
	allocations := make([]Allocation, 0, len(records))
	for _, c := range records {
		a := Allocation{Contribution: c, Claimed: decimal.Zero, Pooled: c.Amount}
		if c.Kind == models.FundingContribution && remaining.IsPositive() {
			a.Claimed = decimal.Min(c.Amount, remaining)
			a.Pooled = c.Amount.Sub(a.Claimed)
			remaining = remaining.Sub(a.Claimed)
		}
		allocations = append(allocations, a)
	}
	return allocations
}
