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
	"strings"
	"time"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deposit credits a user's main wallet from an external payment. Staff only;
// externalTxId makes the call idempotent.
func (s *LedgerService) Deposit(ctx context.Context, actor models.Actor, userId string, amount decimal.Decimal, externalTxId string) (result *models.WalletOperationResult, err error) {
	defer func(start time.Time) { s.observe("deposit", actor, start, err) }(time.Now())

	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if userId == "" || strings.TrimSpace(externalTxId) == "" {
		return nil, fmt.Errorf("%w: user_id and external_transaction_id are required", store.ErrValidation)
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}

	zap.L().Info("Processing deposit",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("external_tx_id", externalTxId))

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := tx.GetUser(ctx, userId); err != nil {
			return err
		}

		exists, err := tx.HasExternalTransaction(ctx, externalTxId)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: external_transaction_id %s already processed", store.ErrDuplicateTransaction, externalTxId)
		}

		record, err := tx.Credit(ctx, store.WalletMovement{
			UserId:       userId,
			Wallet:       models.WalletMain,
			Amount:       amount,
			Kind:         models.TxDeposit,
			ExternalTxId: externalTxId,
		})
		if err != nil {
			return err
		}

		wallet, err := tx.GetWallet(ctx, userId)
		if err != nil {
			return err
		}
		result = walletResult(record, wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit processed successfully",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", result.Wallet.MainBalance.String()))
	return result, nil
}

func walletResult(record *models.Transaction, wallet models.UserWallet) *models.WalletOperationResult {
	return &models.WalletOperationResult{
		TransactionId: record.Id,
		Kind:          record.Kind,
		Status:        record.Status,
		Amount:        record.Amount.Abs(),
		Wallet:        wallet,
	}
}
