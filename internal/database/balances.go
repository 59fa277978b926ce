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
	"fmt"

	"crowdfund-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetAllUserBalances returns every wallet row of a user
func (s *Service) GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	zap.L().Debug("Getting all balances", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var wallet string
		err := rows.Scan(&balance.Id, &balance.UserId, &wallet, &balance.Balance,
			&balance.LastTransactionId, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balance.Wallet = models.Wallet(wallet)

		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.String("user_id", userId), zap.Int("count", len(balances)))
	return balances, nil
}

// ReconcileWallet verifies that a wallet balance matches its journal postings
func (s *Service) ReconcileWallet(ctx context.Context, userId string, wallet models.Wallet) error {
	zap.L().Info("Reconciling wallet", zap.String("user_id", userId), zap.String("wallet", string(wallet)))

	current, err := s.GetUserWallet(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}
	currentBalance := current.Balance(wallet)

	// Calculate balance from the journal: credits increase a user wallet
	rows, err := s.db.QueryContext(ctx, queryGetWalletJournal, walletAccount(userId, wallet))
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	defer closeRows(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var debit, credit decimal.Decimal
		if err := rows.Scan(&debit, &credit); err != nil {
			return fmt.Errorf("failed to scan journal entry: %w", err)
		}
		calculatedBalance = calculatedBalance.Add(credit).Sub(debit)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating journal rows: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Wallet reconciliation failed",
			zap.String("user_id", userId),
			zap.String("wallet", string(wallet)),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("user_id", userId),
		zap.String("wallet", string(wallet)),
		zap.String("balance", currentBalance.String()))
	return nil
}
