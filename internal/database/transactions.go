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

// journalLeg is one side of a balanced journal posting
type journalLeg struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// walletAccount is the journal account of a user wallet. A credit increases it.
func walletAccount(userId string, wallet models.Wallet) string {
	return userId + ":" + string(wallet)
}

// counterpartyFor picks the non-user side of a posting when the caller did not.
func counterpartyFor(kind models.TransactionKind, campaignId string) string {
	switch kind {
	case models.TxDeposit, models.TxWithdrawal:
		return "external"
	}
	if campaignId != "" {
		return "campaign_pool:" + campaignId
	}
	return "platform_float"
}

func accountType(account string) string {
	if i := strings.IndexByte(account, ':'); i > 0 {
		return account[:i]
	}
	return account
}

// insertTransaction appends a TransactionLog row together with its journal legs.
func (t *ledgerTx) insertTransaction(ctx context.Context, record *models.Transaction, legs []journalLeg) error {
	if record.Id == "" {
		record.Id = uuid.New().String()
	}
	if record.Status == "" {
		record.Status = models.TxStatusCompleted
	}
	ts := now()
	record.CreatedAt = ts
	record.ProcessedAt = ts

	_, err := t.tx.ExecContext(ctx, queryInsertTransaction,
		record.Id, record.UserId, record.CampaignId, string(record.Kind), record.Wallet,
		record.Amount.String(), record.BalanceBefore.String(), record.BalanceAfter.String(),
		record.ExternalTxId, record.Reference, record.Details, string(record.Status), ts, ts)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: transactions.external_transaction_id") {
			return fmt.Errorf("%w: external_transaction_id %s already exists", store.ErrDuplicateTransaction, record.ExternalTxId)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, leg := range legs {
		_, err := t.tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), record.Id, leg.accountType, leg.accountId,
			leg.debitAmount.String(), leg.creditAmount.String(), ts)
		if err != nil {
			return fmt.Errorf("failed to add journal entry: %w", err)
		}
	}

	return nil
}

// AppendTransaction records a TransactionLog entry that moves no wallet.
func (t *ledgerTx) AppendTransaction(ctx context.Context, p store.TransactionParams) (*models.Transaction, error) {
	if p.UserId == "" || p.Kind == "" {
		return nil, fmt.Errorf("%w: user id and kind are required", store.ErrValidation)
	}

	record := &models.Transaction{
		UserId:     p.UserId,
		CampaignId: p.CampaignId,
		Kind:       p.Kind,
		Wallet:     p.Wallet,
		Amount:     p.Amount,
		Reference:  p.Reference,
		Details:    p.Details,
		Status:     p.Status,
	}
	if err := t.insertTransaction(ctx, record, nil); err != nil {
		return nil, err
	}

	zap.L().Info("Transaction appended",
		zap.String("transaction_id", record.Id),
		zap.String("user_id", record.UserId),
		zap.String("campaign_id", record.CampaignId),
		zap.String("kind", string(record.Kind)),
		zap.String("amount", record.Amount.String()))
	return record, nil
}

// SumTransactions totals the non-failed entries of one kind for a campaign.
func (t *ledgerTx) SumTransactions(ctx context.Context, campaignId string, kind models.TransactionKind) (decimal.Decimal, error) {
	rows, err := t.tx.QueryContext(ctx, querySumTransactionAmounts, campaignId, string(kind))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return total, nil
}

func (t *ledgerTx) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	record, err := scanTransaction(t.tx.QueryRowContext(ctx, queryGetTransaction, transactionId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return record, nil
}

// UpdatePendingStatus is the only mutation allowed on a logged transaction:
// pending -> completed | failed.
func (t *ledgerTx) UpdatePendingStatus(ctx context.Context, transactionId string, status models.TransactionStatus) error {
	if status != models.TxStatusCompleted && status != models.TxStatusFailed {
		return fmt.Errorf("%w: pending transactions can only become completed or failed", store.ErrValidation)
	}

	result, err := t.tx.ExecContext(ctx, queryUpdatePendingTransaction, string(status), now(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := t.GetTransaction(ctx, transactionId); err != nil {
			return err
		}
		return fmt.Errorf("%w: transaction %s is no longer pending", store.ErrInvalidState, transactionId)
	}
	return nil
}

func (t *ledgerTx) HasExternalTransaction(ctx context.Context, externalTxId string) (bool, error) {
	var existingId string
	err := t.tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, externalTxId).Scan(&existingId)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return true, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return collectTransactions(rows)
}

// GetCampaignTransactions returns every log entry tied to a campaign, oldest first
func (s *Service) GetCampaignTransactions(ctx context.Context, campaignId string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCampaignTransactions, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign transactions: %w", err)
	}
	return collectTransactions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var record models.Transaction
	var kind, status string
	err := row.Scan(&record.Id, &record.UserId, &record.CampaignId, &kind, &record.Wallet,
		&record.Amount, &record.BalanceBefore, &record.BalanceAfter,
		&record.ExternalTxId, &record.Reference, &record.Details, &status,
		&record.CreatedAt, &record.ProcessedAt)
	if err != nil {
		return nil, err
	}
	record.Kind = models.TransactionKind(kind)
	record.Status = models.TransactionStatus(status)
	return &record, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *record)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
