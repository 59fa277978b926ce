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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// walletRow is a wallet balance read inside the current transaction
type walletRow struct {
	wallet  models.Wallet
	balance decimal.Decimal
	version int64
}

// loadWallet reads a wallet row, creating a zero row on first use.
func (t *ledgerTx) loadWallet(ctx context.Context, userId string, wallet models.Wallet) (walletRow, error) {
	row := walletRow{wallet: wallet}
	var accountId string
	err := t.tx.QueryRowContext(ctx, queryGetAccountBalance, userId, string(wallet)).Scan(&accountId, &row.balance, &row.version)
	if errors.Is(err, sql.ErrNoRows) {
		row.balance = decimal.Zero
		row.version = 1
		_, err = t.tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), userId, string(wallet), "0", 1, now())
		if err != nil {
			return walletRow{}, fmt.Errorf("failed to create account balance: %w", err)
		}
		return row, nil
	}
	if err != nil {
		return walletRow{}, fmt.Errorf("failed to get current balance: %w", err)
	}
	return row, nil
}

// storeWallet writes a new balance with optimistic locking on the version read by loadWallet.
func (t *ledgerTx) storeWallet(ctx context.Context, userId string, row walletRow, newBalance decimal.Decimal, transactionId string) error {
	if newBalance.IsNegative() {
		return fmt.Errorf("%w: wallet %s of user %s would become negative", store.ErrInsufficientBalance, row.wallet, userId)
	}

	result, err := t.tx.ExecContext(ctx, queryUpdateAccountBalance,
		newBalance.String(), transactionId, now(), userId, string(row.wallet), row.version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

func validateMovement(userId string, wallet models.Wallet, amount decimal.Decimal) error {
	if userId == "" {
		return fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	if !wallet.Valid() {
		return fmt.Errorf("%w: unknown wallet %q", store.ErrValidation, wallet)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, amount.String())
	}
	return nil
}

// GetWallet returns the three balances of a user as seen by this transaction.
func (t *ledgerTx) GetWallet(ctx context.Context, userId string) (models.UserWallet, error) {
	rows, err := t.tx.QueryContext(ctx, queryGetUserWallets, userId)
	if err != nil {
		return models.UserWallet{}, fmt.Errorf("failed to get wallets: %w", err)
	}
	return collectWallet(userId, rows)
}

// Credit increases one wallet and logs the movement.
func (t *ledgerTx) Credit(ctx context.Context, m store.WalletMovement) (*models.Transaction, error) {
	if err := validateMovement(m.UserId, m.Wallet, m.Amount); err != nil {
		return nil, err
	}

	row, err := t.loadWallet(ctx, m.UserId, m.Wallet)
	if err != nil {
		return nil, err
	}
	newBalance := row.balance.Add(m.Amount)

	counterparty := m.Counterparty
	if counterparty == "" {
		counterparty = counterpartyFor(m.Kind, m.CampaignId)
	}

	record := &models.Transaction{
		UserId:        m.UserId,
		CampaignId:    m.CampaignId,
		Kind:          m.Kind,
		Wallet:        string(m.Wallet),
		Amount:        m.Amount,
		BalanceBefore: row.balance,
		BalanceAfter:  newBalance,
		ExternalTxId:  m.ExternalTxId,
		Reference:     m.Reference,
		Status:        m.Status,
	}
	legs := []journalLeg{
		{"user_wallet", walletAccount(m.UserId, m.Wallet), decimal.Zero, m.Amount},
		{accountType(counterparty), counterparty, m.Amount, decimal.Zero},
	}
	if err := t.insertTransaction(ctx, record, legs); err != nil {
		return nil, err
	}
	if err := t.storeWallet(ctx, m.UserId, row, newBalance, record.Id); err != nil {
		return nil, err
	}

	zap.L().Info("Wallet credited",
		zap.String("transaction_id", record.Id),
		zap.String("user_id", m.UserId),
		zap.String("wallet", string(m.Wallet)),
		zap.String("kind", string(m.Kind)),
		zap.String("amount", m.Amount.String()),
		zap.String("old_balance", row.balance.String()),
		zap.String("new_balance", newBalance.String()))
	return record, nil
}

// Debit decreases one wallet, failing with InsufficientBalanceError when it cannot.
func (t *ledgerTx) Debit(ctx context.Context, m store.WalletMovement) (*models.Transaction, error) {
	if err := validateMovement(m.UserId, m.Wallet, m.Amount); err != nil {
		return nil, err
	}

	row, err := t.loadWallet(ctx, m.UserId, m.Wallet)
	if err != nil {
		return nil, err
	}
	if row.balance.LessThan(m.Amount) {
		return nil, &store.InsufficientBalanceError{
			UserId:    m.UserId,
			Wallet:    string(m.Wallet),
			Requested: m.Amount,
			Available: row.balance,
		}
	}
	newBalance := row.balance.Sub(m.Amount)

	counterparty := m.Counterparty
	if counterparty == "" {
		counterparty = counterpartyFor(m.Kind, m.CampaignId)
	}

	record := &models.Transaction{
		UserId:        m.UserId,
		CampaignId:    m.CampaignId,
		Kind:          m.Kind,
		Wallet:        string(m.Wallet),
		Amount:        m.Amount.Neg(),
		BalanceBefore: row.balance,
		BalanceAfter:  newBalance,
		ExternalTxId:  m.ExternalTxId,
		Reference:     m.Reference,
		Status:        m.Status,
	}
	legs := []journalLeg{
		{"user_wallet", walletAccount(m.UserId, m.Wallet), m.Amount, decimal.Zero},
		{accountType(counterparty), counterparty, decimal.Zero, m.Amount},
	}
	if err := t.insertTransaction(ctx, record, legs); err != nil {
		return nil, err
	}
	if err := t.storeWallet(ctx, m.UserId, row, newBalance, record.Id); err != nil {
		return nil, err
	}

	zap.L().Info("Wallet debited",
		zap.String("transaction_id", record.Id),
		zap.String("user_id", m.UserId),
		zap.String("wallet", string(m.Wallet)),
		zap.String("kind", string(m.Kind)),
		zap.String("amount", m.Amount.String()),
		zap.String("old_balance", row.balance.String()),
		zap.String("new_balance", newBalance.String()))
	return record, nil
}

// DebitAcrossWallets drains the wallets in order until the amount is covered.
// The plan is computed from a consistent read of every wallet before any row
// is written, so a shortfall leaves all balances untouched.
func (t *ledgerTx) DebitAcrossWallets(ctx context.Context, p store.MultiWalletDebit) (*store.DebitResult, error) {
	order := p.Order
	if len(order) == 0 {
		order = models.DefaultDebitOrder
	}
	if p.UserId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, p.Amount.String())
	}

	seen := make(map[models.Wallet]bool, len(order))
	rows := make([]walletRow, 0, len(order))
	available := decimal.Zero
	for _, wallet := range order {
		if !wallet.Valid() || seen[wallet] {
			return nil, fmt.Errorf("%w: invalid debit order %v", store.ErrValidation, order)
		}
		seen[wallet] = true

		row, err := t.loadWallet(ctx, p.UserId, wallet)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		available = available.Add(row.balance)
	}

	if available.LessThan(p.Amount) {
		return nil, &store.InsufficientBalanceError{
			UserId:    p.UserId,
			Wallet:    joinWallets(order),
			Requested: p.Amount,
			Available: available,
		}
	}

	remaining := p.Amount
	var legs []store.WalletLeg
	takes := make([]decimal.Decimal, len(rows))
	for i, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(row.balance, remaining)
		if !take.IsPositive() {
			continue
		}
		takes[i] = take
		remaining = remaining.Sub(take)
		legs = append(legs, store.WalletLeg{Wallet: row.wallet, Amount: take})
	}

	details, err := json.Marshal(legs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallet legs: %w", err)
	}

	counterparty := p.Counterparty
	if counterparty == "" {
		counterparty = counterpartyFor(p.Kind, p.CampaignId)
	}

	touched := make([]models.Wallet, 0, len(legs))
	journal := make([]journalLeg, 0, len(legs)+1)
	for _, leg := range legs {
		touched = append(touched, leg.Wallet)
		journal = append(journal, journalLeg{"user_wallet", walletAccount(p.UserId, leg.Wallet), leg.Amount, decimal.Zero})
	}
	journal = append(journal, journalLeg{accountType(counterparty), counterparty, decimal.Zero, p.Amount})

	record := &models.Transaction{
		UserId:        p.UserId,
		CampaignId:    p.CampaignId,
		Kind:          p.Kind,
		Wallet:        joinWallets(touched),
		Amount:        p.Amount.Neg(),
		BalanceBefore: available,
		BalanceAfter:  available.Sub(p.Amount),
		Reference:     p.Reference,
		Details:       string(details),
	}
	if err := t.insertTransaction(ctx, record, journal); err != nil {
		return nil, err
	}

	for i, row := range rows {
		if takes[i].IsZero() {
			continue
		}
		if err := t.storeWallet(ctx, p.UserId, row, row.balance.Sub(takes[i]), record.Id); err != nil {
			return nil, err
		}
	}

	zap.L().Info("Wallets debited with fallback",
		zap.String("transaction_id", record.Id),
		zap.String("user_id", p.UserId),
		zap.String("kind", string(p.Kind)),
		zap.String("amount", p.Amount.String()),
		zap.String("legs", string(details)))
	return &store.DebitResult{Transaction: record, Legs: legs}, nil
}

// Transfer moves funds between two wallets of the same user in one log entry.
func (t *ledgerTx) Transfer(ctx context.Context, p store.TransferParams) (*models.Transaction, error) {
	if err := validateMovement(p.UserId, p.From, p.Amount); err != nil {
		return nil, err
	}
	if !p.To.Valid() || p.To == p.From {
		return nil, fmt.Errorf("%w: invalid destination wallet %q", store.ErrValidation, p.To)
	}

	from, err := t.loadWallet(ctx, p.UserId, p.From)
	if err != nil {
		return nil, err
	}
	to, err := t.loadWallet(ctx, p.UserId, p.To)
	if err != nil {
		return nil, err
	}
	if from.balance.LessThan(p.Amount) {
		return nil, &store.InsufficientBalanceError{
			UserId:    p.UserId,
			Wallet:    string(p.From),
			Requested: p.Amount,
			Available: from.balance,
		}
	}

	record := &models.Transaction{
		UserId:        p.UserId,
		Kind:          p.Kind,
		Wallet:        string(p.From) + "->" + string(p.To),
		Amount:        p.Amount,
		BalanceBefore: from.balance,
		BalanceAfter:  from.balance.Sub(p.Amount),
		Reference:     p.Reference,
	}
	legs := []journalLeg{
		{"user_wallet", walletAccount(p.UserId, p.From), p.Amount, decimal.Zero},
		{"user_wallet", walletAccount(p.UserId, p.To), decimal.Zero, p.Amount},
	}
	if err := t.insertTransaction(ctx, record, legs); err != nil {
		return nil, err
	}
	if err := t.storeWallet(ctx, p.UserId, from, from.balance.Sub(p.Amount), record.Id); err != nil {
		return nil, err
	}
	if err := t.storeWallet(ctx, p.UserId, to, to.balance.Add(p.Amount), record.Id); err != nil {
		return nil, err
	}

	zap.L().Info("Wallet transfer processed",
		zap.String("transaction_id", record.Id),
		zap.String("user_id", p.UserId),
		zap.String("from", string(p.From)),
		zap.String("to", string(p.To)),
		zap.String("amount", p.Amount.String()))
	return record, nil
}

// GetUserWallet returns the committed three-balance view of a user
func (s *Service) GetUserWallet(ctx context.Context, userId string) (models.UserWallet, error) {
	zap.L().Debug("Getting wallet", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetUserWallets, userId)
	if err != nil {
		zap.L().Error("Failed to get wallet", zap.String("user_id", userId), zap.Error(err))
		return models.UserWallet{}, fmt.Errorf("failed to get wallets: %w", err)
	}
	return collectWallet(userId, rows)
}

func collectWallet(userId string, rows *sql.Rows) (models.UserWallet, error) {
	defer closeRows(rows)

	wallet := models.UserWallet{UserId: userId}
	for rows.Next() {
		var name string
		var balance decimal.Decimal
		if err := rows.Scan(&name, &balance); err != nil {
			return models.UserWallet{}, fmt.Errorf("failed to scan wallet: %w", err)
		}
		switch models.Wallet(name) {
		case models.WalletMain:
			wallet.MainBalance = balance
		case models.WalletContributions:
			wallet.ContributionsBalance = balance
		case models.WalletTips:
			wallet.TipsBalance = balance
		}
	}
	if err := rows.Err(); err != nil {
		return models.UserWallet{}, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallet, nil
}

func joinWallets(wallets []models.Wallet) string {
	names := make([]string, len(wallets))
	for i, w := range wallets {
		names[i] = string(w)
	}
	return strings.Join(names, "+")
}
