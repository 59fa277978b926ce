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
	"context"
	"fmt"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	accountPlatformFloat = "platform_float"
)

// Reconciler resolves close requests. Every close runs in a single ledger
// transaction; the status compare-and-set makes only one close succeed.
type Reconciler struct {
	store store.LedgerStore
}

func NewReconciler(s store.LedgerStore) *Reconciler {
	return &Reconciler{store: s}
}

// Close decides and applies the closure outcome for a campaign. Only the
// creator or staff may close; anything but an open campaign is rejected with
// ErrInvalidState and leaves the log untouched.
func (r *Reconciler) Close(ctx context.Context, actor models.Actor, campaignId, reason string) (*models.CloseResult, error) {
	var result *models.CloseResult

	err := r.store.RunInTx(ctx, func(tx store.LedgerTx) error {
		campaign, err := tx.GetCampaign(ctx, campaignId)
		if err != nil {
			return err
		}
		if campaign.CreatorId != actor.UserId && !actor.IsStaff() {
			return fmt.Errorf("%w: only the creator can close campaign %s", store.ErrUnauthorized, campaignId)
		}
		if !campaign.Status.IsOpen() {
			return fmt.Errorf("%w: campaign %s is %s", store.ErrInvalidState, campaignId, campaign.Status)
		}

		records, err := tx.ListByCampaign(ctx, campaignId, store.ContributionFilter{})
		if err != nil {
			return err
		}
		creatorWallet, err := tx.GetWallet(ctx, campaign.CreatorId)
		if err != nil {
			return err
		}

		active := activeRecords(records)
		in := Inputs{
			HasReceivedFunds:    len(records) > 0,
			IsUnderFunded:       campaign.IsUnderFunded(),
			HasWithdrawn:        campaign.ClaimedAmount.IsPositive(),
			ClaimedAmount:       campaign.ClaimedAmount,
			CreatorTotalBalance: creatorWallet.Total(),
			ActiveTotal:         sumAmounts(active),
		}
		plan := Decide(in)

		zap.L().Info("Closing campaign",
			zap.String("campaign_id", campaignId),
			zap.String("actor_id", actor.UserId),
			zap.String("outcome", string(plan.Outcome)),
			zap.Bool("has_received_funds", in.HasReceivedFunds),
			zap.Bool("is_under_funded", in.IsUnderFunded),
			zap.String("claimed_amount", in.ClaimedAmount.String()),
			zap.String("creator_total_balance", in.CreatorTotalBalance.String()),
			zap.String("active_total", in.ActiveTotal.String()))

		if err := tx.TransitionStatus(ctx, campaignId, campaign.Status, plan.Status, reason); err != nil {
			return err
		}

		ex := &executor{tx: tx, campaign: campaign, actor: actor, reason: reason}
		result, err = ex.apply(ctx, plan, in, active)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Campaign closed",
		zap.String("campaign_id", campaignId),
		zap.String("outcome", result.Outcome),
		zap.String("status", string(result.Status)),
		zap.Int("refund_count", result.RefundCount),
		zap.String("refunded_total", result.RefundedTotal.String()),
		zap.Bool("creator_flagged", result.CreatorFlagged))
	return result, nil
}

// executor applies a Plan inside the caller's transaction.
type executor struct {
	tx       store.LedgerTx
	campaign *models.Campaign
	actor    models.Actor
	reason   string
	result   models.CloseResult
}

func (e *executor) apply(ctx context.Context, plan Plan, in Inputs, active []models.Contribution) (*models.CloseResult, error) {
	e.result = models.CloseResult{
		CampaignId:       e.campaign.Id,
		Outcome:          string(plan.Outcome),
		Status:           plan.Status,
		RefundedTotal:    decimal.Zero,
		CreatorDebited:   decimal.Zero,
		ReclaimedTotal:   decimal.Zero,
		UnrecoveredTotal: decimal.Zero,
		Deficit:          plan.Deficit,
	}

	if plan.Outcome == OutcomeCleanClose {
		_, err := e.tx.AppendTransaction(ctx, store.TransactionParams{
			UserId:     e.campaign.CreatorId,
			CampaignId: e.campaign.Id,
			Kind:       models.TxCampaignClosure,
			Amount:     decimal.Zero,
			Reference:  e.reason,
		})
		if err != nil {
			return nil, err
		}
	}

	if plan.CreatorDebit.IsPositive() {
		if err := e.debitCreator(ctx, plan.CreatorDebit, plan.DebitKind, ""); err != nil {
			return nil, err
		}
	}

	if plan.RefundPayers {
		counterparty := ""
		if plan.FromFloat {
			counterparty = accountPlatformFloat
		}
		for _, c := range active {
			if err := e.refund(ctx, c, c.Amount, counterparty); err != nil {
				return nil, err
			}
			if err := e.tx.MarkRefunded(ctx, c.Id); err != nil {
				return nil, err
			}
		}
	}

	if plan.Reclaim {
		if err := e.reclaim(ctx, in, active); err != nil {
			return nil, err
		}
	}

	if plan.FlagCreator {
		if err := e.tx.FlagUser(ctx, e.actor.UserId, e.campaign.CreatorId, plan.FlagReason, true); err != nil {
			return nil, err
		}
		err := e.tx.EnqueueEvent(ctx, store.EventParams{
			EventType: models.EventUserFlagged,
			UserId:    e.campaign.CreatorId,
			Payload:   models.UserFlaggedEvent{Reason: plan.FlagReason, Suspended: true},
		})
		if err != nil {
			return nil, err
		}
		e.result.CreatorFlagged = true
	}

	err := e.tx.EnqueueEvent(ctx, store.EventParams{
		EventType: models.EventCampaignClosed,
		UserId:    e.campaign.CreatorId,
		Payload: models.CampaignClosedEvent{
			CampaignId: e.campaign.Id,
			Outcome:    e.result.Outcome,
			Status:     e.result.Status,
			Refunded:   e.result.RefundedTotal,
		},
	})
	if err != nil {
		return nil, err
	}

	return &e.result, nil
}

// reclaim handles the fraud branch. Claimed portions are pulled back from the
// creator oldest first while the creator still has funds; pooled portions and
// tips are refunded from platform float. A record is only marked refunded
// once its payer has been paid in full.
func (e *executor) reclaim(ctx context.Context, in Inputs, active []models.Contribution) error {
	available := in.CreatorTotalBalance

	for _, a := range AllocateClaimed(active, in.ClaimedAmount) {
		paid := decimal.Zero

		if a.Claimed.IsPositive() {
			take := decimal.Min(a.Claimed, available)
			if take.IsPositive() {
				if err := e.debitCreator(ctx, take, models.TxContributionReclaim, a.Contribution.Id); err != nil {
					return err
				}
				if err := e.refund(ctx, a.Contribution, take, ""); err != nil {
					return err
				}
				available = available.Sub(take)
				paid = paid.Add(take)
				e.result.ReclaimedTotal = e.result.ReclaimedTotal.Add(take)
			}
			if shortfall := a.Claimed.Sub(take); shortfall.IsPositive() {
				if err := e.recordUnrecovered(ctx, a.Contribution, shortfall); err != nil {
					return err
				}
			}
		}

		if a.Pooled.IsPositive() {
			if err := e.refund(ctx, a.Contribution, a.Pooled, accountPlatformFloat); err != nil {
				return err
			}
			paid = paid.Add(a.Pooled)
		}

		if paid.Equal(a.Contribution.Amount) {
			if err := e.tx.MarkRefunded(ctx, a.Contribution.Id); err != nil {
				return err
			}
		}
	}

	if e.result.UnrecoveredTotal.IsPositive() {
		zap.L().Warn("Claimed funds could not be fully reclaimed",
			zap.String("campaign_id", e.campaign.Id),
			zap.String("creator_id", e.campaign.CreatorId),
			zap.String("unrecovered", e.result.UnrecoveredTotal.String()))
	}
	return nil
}

// recordUnrecovered logs the part of a claimed contribution the creator could
// not cover as a failed reclaim against that contribution. Failed entries
// carry no journal legs and are excluded from campaign sums.
func (e *executor) recordUnrecovered(ctx context.Context, c models.Contribution, shortfall decimal.Decimal) error {
	_, err := e.tx.AppendTransaction(ctx, store.TransactionParams{
		UserId:     e.campaign.CreatorId,
		CampaignId: e.campaign.Id,
		Kind:       models.TxContributionReclaim,
		Amount:     shortfall.Neg(),
		Reference:  c.Id,
		Details:    fmt.Sprintf("unrecovered claim owed to %s", c.PayerId),
		Status:     models.TxStatusFailed,
	})
	if err != nil {
		return fmt.Errorf("failed to record unrecovered claim for %s: %w", c.Id, err)
	}
	e.result.UnrecoveredTotal = e.result.UnrecoveredTotal.Add(shortfall)
	return nil
}

func (e *executor) debitCreator(ctx context.Context, amount decimal.Decimal, kind models.TransactionKind, reference string) error {
	_, err := e.tx.DebitAcrossWallets(ctx, store.MultiWalletDebit{
		UserId:     e.campaign.CreatorId,
		Amount:     amount,
		Order:      models.DefaultDebitOrder,
		Kind:       kind,
		CampaignId: e.campaign.Id,
		Reference:  reference,
	})
	if err != nil {
		return fmt.Errorf("failed to debit creator: %w", err)
	}
	e.result.CreatorDebited = e.result.CreatorDebited.Add(amount)
	return nil
}

// refund credits a payer's main wallet. An empty counterparty means the
// campaign pool pays.
func (e *executor) refund(ctx context.Context, c models.Contribution, amount decimal.Decimal, counterparty string) error {
	_, err := e.tx.Credit(ctx, store.WalletMovement{
		UserId:       c.PayerId,
		Wallet:       models.WalletMain,
		Amount:       amount,
		Kind:         models.TxRefund,
		CampaignId:   e.campaign.Id,
		Reference:    c.Id,
		Counterparty: counterparty,
	})
	if err != nil {
		return fmt.Errorf("failed to refund contribution %s: %w", c.Id, err)
	}

	source := counterparty
	if source == "" {
		source = "campaign_pool"
	}
	err = e.tx.EnqueueEvent(ctx, store.EventParams{
		EventType: models.EventRefundIssued,
		UserId:    c.PayerId,
		Payload: models.RefundIssuedEvent{
			CampaignId:     e.campaign.Id,
			ContributionId: c.Id,
			Amount:         amount,
			Source:         source,
		},
	})
	if err != nil {
		return err
	}

	e.result.RefundCount++
	e.result.RefundedTotal = e.result.RefundedTotal.Add(amount)
	return nil
}

func activeRecords(records []models.Contribution) []models.Contribution {
	var active []models.Contribution
	for _, c := range records {
		if c.Status == models.ContributionActive {
			active = append(active, c)
		}
	}
	return active
}

func sumAmounts(records []models.Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range records {
		total = total.Add(c.Amount)
	}
	return total
}
