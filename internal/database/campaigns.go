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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateCampaign inserts a campaign in the pending state.
func (t *ledgerTx) CreateCampaign(ctx context.Context, p store.CreateCampaignParams) (*models.Campaign, error) {
	if p.CreatorId == "" {
		return nil, fmt.Errorf("%w: creator id is required", store.ErrValidation)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", store.ErrValidation)
	}
	if !p.MinimumAmount.IsPositive() {
		return nil, fmt.Errorf("%w: minimum amount must be positive, got %s", store.ErrValidation, p.MinimumAmount.String())
	}

	ts := now()
	campaign := &models.Campaign{
		Id:            uuid.New().String(),
		CreatorId:     p.CreatorId,
		Title:         strings.TrimSpace(p.Title),
		MinimumAmount: p.MinimumAmount,
		CurrentAmount: decimal.Zero,
		ClaimedAmount: decimal.Zero,
		Status:        models.CampaignPending,
		Version:       1,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	_, err := t.tx.ExecContext(ctx, queryInsertCampaign,
		campaign.Id, campaign.CreatorId, campaign.Title, campaign.MinimumAmount.String(),
		string(campaign.Status), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert campaign: %w", err)
	}

	zap.L().Info("Campaign created",
		zap.String("campaign_id", campaign.Id),
		zap.String("creator_id", campaign.CreatorId),
		zap.String("minimum_amount", campaign.MinimumAmount.String()))
	return campaign, nil
}

func (t *ledgerTx) GetCampaign(ctx context.Context, campaignId string) (*models.Campaign, error) {
	return getCampaign(t.tx.QueryRowContext(ctx, queryGetCampaign, campaignId), campaignId)
}

// GetCampaign returns the committed state of a campaign
func (s *Service) GetCampaign(ctx context.Context, campaignId string) (*models.Campaign, error) {
	zap.L().Debug("Getting campaign", zap.String("campaign_id", campaignId))
	return getCampaign(s.db.QueryRowContext(ctx, queryGetCampaign, campaignId), campaignId)
}

func getCampaign(row rowScanner, campaignId string) (*models.Campaign, error) {
	var campaign models.Campaign
	var status string
	err := row.Scan(&campaign.Id, &campaign.CreatorId, &campaign.Title,
		&campaign.MinimumAmount, &campaign.CurrentAmount, &campaign.ClaimedAmount,
		&status, &campaign.CloseReason, &campaign.Version, &campaign.CreatedAt, &campaign.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: campaign %s", store.ErrNotFound, campaignId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	campaign.Status = models.CampaignStatus(status)
	return &campaign, nil
}

// Raise increases the raised total of an open campaign.
func (t *ledgerTx) Raise(ctx context.Context, campaignId string, amount decimal.Decimal) (*models.Campaign, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, amount.String())
	}

	campaign, err := t.GetCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.IsOpen() {
		return nil, fmt.Errorf("%w: campaign %s is %s", store.ErrInvalidState, campaignId, campaign.Status)
	}

	newCurrent := campaign.CurrentAmount.Add(amount)
	if err := t.updateAmounts(ctx, campaign, newCurrent, campaign.ClaimedAmount); err != nil {
		return nil, err
	}

	zap.L().Info("Campaign raised",
		zap.String("campaign_id", campaignId),
		zap.String("amount", amount.String()),
		zap.String("current_amount", newCurrent.String()))
	return campaign, nil
}

// Claim moves part of the claimable remainder to the claimed total. The raised
// total is never decreased.
func (t *ledgerTx) Claim(ctx context.Context, campaignId string, amount decimal.Decimal) (*models.Campaign, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, amount.String())
	}

	campaign, err := t.GetCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.IsOpen() {
		return nil, fmt.Errorf("%w: campaign %s is %s", store.ErrInvalidState, campaignId, campaign.Status)
	}

	claimable := campaign.Claimable()
	if amount.GreaterThan(claimable) {
		return nil, fmt.Errorf("%w: requested %s, claimable %s", store.ErrInsufficientClaimable, amount.String(), claimable.String())
	}

	newClaimed := campaign.ClaimedAmount.Add(amount)
	if err := t.updateAmounts(ctx, campaign, campaign.CurrentAmount, newClaimed); err != nil {
		return nil, err
	}

	zap.L().Info("Campaign funds claimed",
		zap.String("campaign_id", campaignId),
		zap.String("amount", amount.String()),
		zap.String("claimed_amount", newClaimed.String()))
	return campaign, nil
}

// updateAmounts writes both counters with a compare-and-set on the version
// read by the caller and refreshes campaign in place.
func (t *ledgerTx) updateAmounts(ctx context.Context, campaign *models.Campaign, current, claimed decimal.Decimal) error {
	if claimed.IsNegative() || claimed.GreaterThan(current) {
		return fmt.Errorf("%w: claimed %s outside [0, %s]", store.ErrInsufficientClaimable, claimed.String(), current.String())
	}

	ts := now()
	result, err := t.tx.ExecContext(ctx, queryUpdateCampaignAmounts,
		current.String(), claimed.String(), ts, campaign.Id, campaign.Version)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("campaign update failed - %w", store.ErrConcurrentModification)
	}

	campaign.CurrentAmount = current
	campaign.ClaimedAmount = claimed
	campaign.Version++
	campaign.UpdatedAt = ts
	return nil
}

// TransitionStatus is a compare-and-set on the campaign status. It is the
// single place a campaign changes state, which makes closure exclusive.
func (t *ledgerTx) TransitionStatus(ctx context.Context, campaignId string, from, to models.CampaignStatus, reason string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: cannot move campaign from %s to %s", store.ErrInvalidState, from, to)
	}

	result, err := t.tx.ExecContext(ctx, queryTransitionCampaignStatus,
		string(to), reason, reason, now(), campaignId, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition campaign: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var current string
		err := t.tx.QueryRowContext(ctx, queryCampaignExists, campaignId).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: campaign %s", store.ErrNotFound, campaignId)
		}
		if err != nil {
			return fmt.Errorf("failed to read campaign status: %w", err)
		}
		return fmt.Errorf("%w: campaign %s is %s, expected %s", store.ErrInvalidState, campaignId, current, from)
	}

	zap.L().Info("Campaign status changed",
		zap.String("campaign_id", campaignId),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason))
	return nil
}
