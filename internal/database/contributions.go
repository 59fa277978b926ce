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

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppendContribution stores a new active contribution or tip. Id and
// CreatedAt are filled in when empty.
func (t *ledgerTx) AppendContribution(ctx context.Context, c *models.Contribution) error {
	if c.CampaignId == "" || c.PayerId == "" {
		return fmt.Errorf("%w: campaign and payer are required", store.ErrValidation)
	}
	if c.Kind != models.FundingContribution && c.Kind != models.FundingTip {
		return fmt.Errorf("%w: unknown funding kind %q", store.ErrValidation, c.Kind)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, c.Amount.String())
	}

	if c.Id == "" {
		c.Id = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	c.Status = models.ContributionActive
	c.RefundedAt = nil

	_, err := t.tx.ExecContext(ctx, queryInsertContribution,
		c.Id, c.CampaignId, c.PayerId, string(c.Kind), c.Amount.String(), c.Message,
		string(c.Status), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	zap.L().Debug("Contribution appended",
		zap.String("contribution_id", c.Id),
		zap.String("campaign_id", c.CampaignId),
		zap.String("payer_id", c.PayerId),
		zap.String("kind", string(c.Kind)),
		zap.String("amount", c.Amount.String()))
	return nil
}

// MarkRefunded is the only transition a contribution supports: active -> refunded.
func (t *ledgerTx) MarkRefunded(ctx context.Context, contributionId string) error {
	result, err := t.tx.ExecContext(ctx, queryMarkContributionRefunded, now(), contributionId)
	if err != nil {
		return fmt.Errorf("failed to mark contribution refunded: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var status string
	err = t.tx.QueryRowContext(ctx, queryContributionExists, contributionId).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: contribution %s", store.ErrNotFound, contributionId)
	}
	if err != nil {
		return fmt.Errorf("failed to read contribution status: %w", err)
	}
	return fmt.Errorf("%w: contribution %s is already %s", store.ErrInvalidState, contributionId, status)
}

// ListByCampaign returns the campaign's funding records in creation order.
func (t *ledgerTx) ListByCampaign(ctx context.Context, campaignId string, filter store.ContributionFilter) ([]models.Contribution, error) {
	kind, status := string(filter.Kind), string(filter.Status)
	rows, err := t.tx.QueryContext(ctx, queryListContributions, campaignId, kind, kind, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer closeRows(rows)

	var contributions []models.Contribution
	for rows.Next() {
		var c models.Contribution
		var kind, status string
		var refundedAt sql.NullTime
		if err := rows.Scan(&c.Id, &c.CampaignId, &c.PayerId, &kind, &c.Amount, &c.Message,
			&status, &c.CreatedAt, &refundedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		c.Kind = models.FundingKind(kind)
		c.Status = models.ContributionStatus(status)
		if refundedAt.Valid {
			refunded := refundedAt.Time
			c.RefundedAt = &refunded
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution rows: %w", err)
	}
	return contributions, nil
}
