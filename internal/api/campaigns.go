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

package api

import (
	"context"
	"fmt"
	"time"

	"crowdfund-ledger-go/internal/metrics"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateCampaign registers a campaign in the pending state; staff activate it.
func (s *LedgerService) CreateCampaign(ctx context.Context, actor models.Actor, title string, minimumAmount decimal.Decimal) (view *models.CampaignView, err error) {
	defer func(start time.Time) { s.observe("create_campaign", actor, start, err) }(time.Now())

	if err := requirePositive(minimumAmount); err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := requireActiveUser(ctx, tx, actor); err != nil {
			return err
		}
		campaign, err := tx.CreateCampaign(ctx, store.CreateCampaignParams{
			CreatorId:     actor.UserId,
			Title:         title,
			MinimumAmount: minimumAmount,
		})
		if err != nil {
			return err
		}
		view, err = campaignView(ctx, tx, campaign)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Contribute moves funds from the payer's main wallet into a campaign.
func (s *LedgerService) Contribute(ctx context.Context, actor models.Actor, campaignId string, amount decimal.Decimal, message string) (result *models.FundingResult, err error) {
	defer func(start time.Time) { s.observe("contribute", actor, start, err) }(time.Now())
	return s.fund(ctx, actor, campaignId, models.FundingContribution, amount, message)
}

// Tip moves funds from the payer's main wallet to a campaign's tip pool.
// Tips do not count toward the raised total.
func (s *LedgerService) Tip(ctx context.Context, actor models.Actor, campaignId string, amount decimal.Decimal, message string) (result *models.FundingResult, err error) {
	defer func(start time.Time) { s.observe("tip", actor, start, err) }(time.Now())
	return s.fund(ctx, actor, campaignId, models.FundingTip, amount, message)
}

func (s *LedgerService) fund(ctx context.Context, actor models.Actor, campaignId string, kind models.FundingKind, amount decimal.Decimal, message string) (*models.FundingResult, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}

	txKind, eventType := models.TxContribution, models.EventContributionReceived
	if kind == models.FundingTip {
		txKind, eventType = models.TxTip, models.EventTipReceived
	}

	zap.L().Info("Processing funding",
		zap.String("campaign_id", campaignId),
		zap.String("payer_id", actor.UserId),
		zap.String("kind", string(kind)),
		zap.String("amount", amount.String()))

	var result *models.FundingResult
	err := s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := requireActiveUser(ctx, tx, actor); err != nil {
			return err
		}

		campaign, err := tx.GetCampaign(ctx, campaignId)
		if err != nil {
			return err
		}
		if !campaign.Status.IsOpen() {
			return fmt.Errorf("%w: campaign %s is %s", store.ErrInvalidState, campaignId, campaign.Status)
		}

		contribution := &models.Contribution{
			Id:         uuid.New().String(),
			CampaignId: campaignId,
			PayerId:    actor.UserId,
			Kind:       kind,
			Amount:     amount,
			Message:    message,
		}

		debit, err := tx.Debit(ctx, store.WalletMovement{
			UserId:     actor.UserId,
			Wallet:     models.WalletMain,
			Amount:     amount,
			Kind:       txKind,
			CampaignId: campaignId,
			Reference:  contribution.Id,
		})
		if err != nil {
			return err
		}

		if kind == models.FundingContribution {
			if campaign, err = tx.Raise(ctx, campaignId, amount); err != nil {
				return err
			}
			if campaign.Status == models.CampaignActive && !campaign.IsUnderFunded() {
				if err := tx.TransitionStatus(ctx, campaignId, models.CampaignActive, models.CampaignOnProgress, "minimum reached"); err != nil {
					return err
				}
				campaign.Status = models.CampaignOnProgress
			}
		}

		if err := tx.AppendContribution(ctx, contribution); err != nil {
			return err
		}

		err = tx.EnqueueEvent(ctx, store.EventParams{
			EventType: eventType,
			UserId:    campaign.CreatorId,
			Payload: models.FundingReceivedEvent{
				CampaignId:     campaignId,
				ContributionId: contribution.Id,
				PayerId:        actor.UserId,
				Amount:         amount,
				Message:        message,
			},
		})
		if err != nil {
			return err
		}

		wallet, err := tx.GetWallet(ctx, actor.UserId)
		if err != nil {
			return err
		}

		result = &models.FundingResult{
			ContributionId: contribution.Id,
			TransactionId:  debit.Id,
			CampaignId:     campaignId,
			Amount:         amount,
			CampaignStatus: campaign.Status,
			CurrentAmount:  campaign.CurrentAmount,
			Wallet:         wallet,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Funding processed successfully",
		zap.String("campaign_id", campaignId),
		zap.String("payer_id", actor.UserId),
		zap.String("kind", string(kind)),
		zap.String("amount", amount.String()),
		zap.String("current_amount", result.CurrentAmount.String()),
		zap.String("campaign_status", string(result.CampaignStatus)))
	return result, nil
}

// Claim transfers raised-but-unclaimed funds to the creator. A nil amount
// claims everything currently claimable from the given source.
func (s *LedgerService) Claim(ctx context.Context, actor models.Actor, campaignId string, source models.FundingKind, amount *decimal.Decimal) (result *models.ClaimResult, err error) {
	defer func(start time.Time) { s.observe("claim", actor, start, err) }(time.Now())

	if source == "" {
		source = models.FundingContribution
	}
	if source != models.FundingContribution && source != models.FundingTip {
		return nil, fmt.Errorf("%w: unknown claim source %q", store.ErrValidation, source)
	}
	if amount != nil {
		if err := requirePositive(*amount); err != nil {
			return nil, err
		}
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		user, err := requireActiveUser(ctx, tx, actor)
		if err != nil {
			return err
		}

		campaign, err := tx.GetCampaign(ctx, campaignId)
		if err != nil {
			return err
		}
		if campaign.CreatorId != actor.UserId && !user.IsStaff() {
			return fmt.Errorf("%w: only the creator can claim campaign %s", store.ErrUnauthorized, campaignId)
		}
		if !user.IsStaff() && !user.KycVerified {
			return fmt.Errorf("%w: user %s", store.ErrKycRequired, actor.UserId)
		}
		if !campaign.Status.IsOpen() {
			return fmt.Errorf("%w: campaign %s is %s", store.ErrInvalidState, campaignId, campaign.Status)
		}

		var claimable decimal.Decimal
		if source == models.FundingTip {
			tipsTotal, tipsClaimed, err := tipTotals(ctx, tx, campaignId)
			if err != nil {
				return err
			}
			claimable = tipsTotal.Sub(tipsClaimed)
		} else {
			claimable = campaign.Claimable()
		}

		claimAmount := claimable
		if amount != nil {
			claimAmount = *amount
		}
		if !claimAmount.IsPositive() || claimAmount.GreaterThan(claimable) {
			return fmt.Errorf("%w: requested %s, claimable %s", store.ErrInsufficientClaimable, claimAmount.String(), claimable.String())
		}

		wallet, txKind := models.WalletContributions, models.TxClaim
		if source == models.FundingTip {
			wallet, txKind = models.WalletTips, models.TxTipClaim
		} else if _, err := tx.Claim(ctx, campaignId, claimAmount); err != nil {
			return err
		}

		credit, err := tx.Credit(ctx, store.WalletMovement{
			UserId:     campaign.CreatorId,
			Wallet:     wallet,
			Amount:     claimAmount,
			Kind:       txKind,
			CampaignId: campaignId,
		})
		if err != nil {
			return err
		}

		err = tx.EnqueueEvent(ctx, store.EventParams{
			EventType: models.EventFundsClaimed,
			UserId:    campaign.CreatorId,
			Payload: models.FundsClaimedEvent{
				CampaignId:    campaignId,
				Source:        source,
				Amount:        claimAmount,
				TransactionId: credit.Id,
			},
		})
		if err != nil {
			return err
		}

		creatorWallet, err := tx.GetWallet(ctx, campaign.CreatorId)
		if err != nil {
			return err
		}

		result = &models.ClaimResult{
			CampaignId:    campaignId,
			Source:        source,
			ClaimedAmount: claimAmount,
			TransactionId: credit.Id,
			Remaining:     claimable.Sub(claimAmount),
			Wallet:        creatorWallet,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Funds claimed successfully",
		zap.String("campaign_id", campaignId),
		zap.String("source", string(source)),
		zap.String("amount", result.ClaimedAmount.String()),
		zap.String("remaining", result.Remaining.String()))
	return result, nil
}

// Close runs the closure reconciler for a campaign.
func (s *LedgerService) Close(ctx context.Context, actor models.Actor, campaignId, reason string) (result *models.CloseResult, err error) {
	defer func(start time.Time) { s.observe("close", actor, start, err) }(time.Now())

	result, err = s.reconciler.Close(ctx, actor, campaignId, reason)
	if err != nil {
		return nil, err
	}
	metrics.RecordClosure(result.Outcome)
	return result, nil
}

// ChangeStatus applies an explicit status change requested by the creator or
// staff: completed, cancelled or active.
func (s *LedgerService) ChangeStatus(ctx context.Context, actor models.Actor, campaignId string, target models.CampaignStatus) (view *models.CampaignView, err error) {
	defer func(start time.Time) { s.observe("change_status", actor, start, err) }(time.Now())

	switch target {
	case models.CampaignCompleted, models.CampaignCancelled, models.CampaignActive:
	default:
		return nil, fmt.Errorf("%w: status must be completed, cancelled or active", store.ErrValidation)
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		campaign, err := tx.GetCampaign(ctx, campaignId)
		if err != nil {
			return err
		}

		switch target {
		case models.CampaignActive:
			if err := requireStaff(actor); err != nil {
				return err
			}
		default:
			if campaign.CreatorId != actor.UserId && !actor.IsStaff() {
				return fmt.Errorf("%w: only the creator can change campaign %s", store.ErrUnauthorized, campaignId)
			}
		}

		if !campaign.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: cannot move campaign from %s to %s", store.ErrInvalidState, campaign.Status, target)
		}

		switch target {
		case models.CampaignCompleted:
			if campaign.IsUnderFunded() {
				return fmt.Errorf("%w: campaign %s has not reached its minimum", store.ErrInvalidState, campaignId)
			}
		case models.CampaignCancelled:
			records, err := tx.ListByCampaign(ctx, campaignId, store.ContributionFilter{})
			if err != nil {
				return err
			}
			if len(records) > 0 {
				return fmt.Errorf("%w: campaign %s has received funds and must be closed", store.ErrInvalidState, campaignId)
			}
		}

		if err := tx.TransitionStatus(ctx, campaignId, campaign.Status, target, ""); err != nil {
			return err
		}
		campaign.Status = target

		view, err = campaignView(ctx, tx, campaign)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Campaign status updated",
		zap.String("campaign_id", campaignId),
		zap.String("actor_id", actor.UserId),
		zap.String("status", string(target)))
	return view, nil
}

// GetCampaign returns the public view of a campaign including tip totals
func (s *LedgerService) GetCampaign(ctx context.Context, campaignId string) (*models.CampaignView, error) {
	var view *models.CampaignView
	err := s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		campaign, err := tx.GetCampaign(ctx, campaignId)
		if err != nil {
			return err
		}
		view, err = campaignView(ctx, tx, campaign)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// tipTotals derives tip balances from the append-only records: every tip
// received and every tip_claim logged.
func tipTotals(ctx context.Context, tx store.LedgerTx, campaignId string) (decimal.Decimal, decimal.Decimal, error) {
	tips, err := tx.ListByCampaign(ctx, campaignId, store.ContributionFilter{Kind: models.FundingTip})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	total := decimal.Zero
	for _, tip := range tips {
		total = total.Add(tip.Amount)
	}

	claimed, err := tx.SumTransactions(ctx, campaignId, models.TxTipClaim)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return total, claimed, nil
}

func campaignView(ctx context.Context, tx store.LedgerTx, c *models.Campaign) (*models.CampaignView, error) {
	tipsTotal, tipsClaimed, err := tipTotals(ctx, tx, c.Id)
	if err != nil {
		return nil, err
	}
	return &models.CampaignView{
		Id:            c.Id,
		CreatorId:     c.CreatorId,
		Title:         c.Title,
		Status:        c.Status,
		MinimumAmount: c.MinimumAmount,
		CurrentAmount: c.CurrentAmount,
		ClaimedAmount: c.ClaimedAmount,
		Claimable:     c.Claimable(),
		TipsTotal:     tipsTotal,
		TipsClaimed:   tipsClaimed,
	}, nil
}
