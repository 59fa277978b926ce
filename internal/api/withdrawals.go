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

// Withdraw debits the caller's main wallet and records a pending withdrawal
// awaiting settlement by the payment provider.
func (s *LedgerService) Withdraw(ctx context.Context, actor models.Actor, amount decimal.Decimal) (result *models.WalletOperationResult, err error) {
	defer func(start time.Time) { s.observe("withdraw", actor, start, err) }(time.Now())

	if err := requirePositive(amount); err != nil {
		return nil, err
	}

	zap.L().Info("Processing withdrawal",
		zap.String("user_id", actor.UserId),
		zap.String("amount", amount.String()))

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if _, err := requireActiveUser(ctx, tx, actor); err != nil {
			return err
		}

		record, err := tx.Debit(ctx, store.WalletMovement{
			UserId: actor.UserId,
			Wallet: models.WalletMain,
			Amount: amount,
			Kind:   models.TxWithdrawal,
			Status: models.TxStatusPending,
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

	zap.L().Info("Withdrawal recorded as pending",
		zap.String("user_id", actor.UserId),
		zap.String("transaction_id", result.TransactionId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", result.Wallet.MainBalance.String()))
	return result, nil
}

// SettleWithdrawal finalizes a pending withdrawal. A failed settlement credits
// the amount back to the user's main wallet.
func (s *LedgerService) SettleWithdrawal(ctx context.Context, actor models.Actor, transactionId string, status models.TransactionStatus) (result *models.WalletOperationResult, err error) {
	defer func(start time.Time) { s.observe("settle_withdrawal", actor, start, err) }(time.Now())

	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if status != models.TxStatusCompleted && status != models.TxStatusFailed {
		return nil, fmt.Errorf("%w: settlement status must be completed or failed", store.ErrValidation)
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		record, err := tx.GetTransaction(ctx, transactionId)
		if err != nil {
			return err
		}
		if record.Kind != models.TxWithdrawal {
			return fmt.Errorf("%w: transaction %s is a %s, not a withdrawal", store.ErrValidation, transactionId, record.Kind)
		}

		if err := tx.UpdatePendingStatus(ctx, transactionId, status); err != nil {
			return err
		}
		record.Status = status

		amount := record.Amount.Abs()
		if status == models.TxStatusFailed {
			_, err := tx.Credit(ctx, store.WalletMovement{
				UserId:       record.UserId,
				Wallet:       models.WalletMain,
				Amount:       amount,
				Kind:         models.TxDeposit,
				ExternalTxId: "reversal:" + transactionId,
				Reference:    transactionId,
			})
			if err != nil {
				return err
			}
		}

		err = tx.EnqueueEvent(ctx, store.EventParams{
			EventType: models.EventWithdrawalSettled,
			UserId:    record.UserId,
			Payload: models.WithdrawalSettledEvent{
				TransactionId: transactionId,
				Status:        status,
				Amount:        amount,
			},
		})
		if err != nil {
			return err
		}

		wallet, err := tx.GetWallet(ctx, record.UserId)
		if err != nil {
			return err
		}
		result = walletResult(record, wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal settled",
		zap.String("transaction_id", transactionId),
		zap.String("status", string(status)),
		zap.String("amount", result.Amount.String()))
	return result, nil
}
