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

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetWallet returns the three wallet balances for a user. Users may only read
// their own wallet unless they are staff.
func (s *LedgerService) GetWallet(ctx context.Context, actor models.Actor, userId string) (models.UserWallet, error) {
	if userId == "" {
		userId = actor.UserId
	}
	if userId != actor.UserId && !actor.IsStaff() {
		return models.UserWallet{}, fmt.Errorf("%w: cannot read wallet of %s", store.ErrUnauthorized, userId)
	}

	wallet, err := s.db.GetUserWallet(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user wallet", zap.String("user_id", userId), zap.Error(err))
		return models.UserWallet{}, err
	}
	return wallet, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *LedgerService) GetTransactionHistory(ctx context.Context, actor models.Actor, userId string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" {
		userId = actor.UserId
	}
	if userId != actor.UserId && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: cannot read history of %s", store.ErrUnauthorized, userId)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.db.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	return toRecords(transactions), nil
}

// GetCampaignTransactions lists every ledger entry tied to a campaign. Staff
// and the campaign creator only.
func (s *LedgerService) GetCampaignTransactions(ctx context.Context, actor models.Actor, campaignId string) ([]models.TransactionRecord, error) {
	campaign, err := s.db.GetCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.CreatorId != actor.UserId && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: cannot read transactions of campaign %s", store.ErrUnauthorized, campaignId)
	}

	transactions, err := s.db.GetCampaignTransactions(ctx, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve campaign transactions: %w", err)
	}
	return toRecords(transactions), nil
}

// Convert moves claimed funds from the contributions or tips wallet into the
// main wallet so they can be withdrawn.
func (s *LedgerService) Convert(ctx context.Context, actor models.Actor, from models.Wallet, amount decimal.Decimal) (result *models.WalletOperationResult, err error) {
	defer func(start time.Time) { s.observe("convert", actor, start, err) }(time.Now())

	if from != models.WalletContributions && from != models.WalletTips {
		return nil, fmt.Errorf("%w: can only convert from contributions or tips", store.ErrValidation)
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := requireActiveUser(ctx, tx, actor); err != nil {
			return err
		}

		record, err := tx.Transfer(ctx, store.TransferParams{
			UserId: actor.UserId,
			From:   from,
			To:     models.WalletMain,
			Amount: amount,
			Kind:   models.TxConversion,
		})
		if err != nil {
			return err
		}

		wallet, err := tx.GetWallet(ctx, actor.UserId)
		if err != nil {
			return err
		}
		result = walletResult(record, wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Wallet conversion completed",
		zap.String("user_id", actor.UserId),
		zap.String("from", string(from)),
		zap.String("amount", amount.String()),
		zap.String("main_balance", result.Wallet.MainBalance.String()))
	return result, nil
}

func toRecords(transactions []models.Transaction) []models.TransactionRecord {
	records := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		records[i] = models.TransactionRecord{
			Id:          tx.Id,
			Kind:        tx.Kind,
			CampaignId:  tx.CampaignId,
			Wallet:      tx.Wallet,
			Amount:      tx.Amount,
			Status:      tx.Status,
			Reference:   tx.Reference,
			ProcessedAt: tx.ProcessedAt,
		}
	}
	return records
}
