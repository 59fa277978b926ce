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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a platform account. Wallet balances live in account_balances.
type User struct {
	Id          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	Role        Role      `db:"role" json:"role"`
	KycVerified bool      `db:"kyc_verified" json:"kyc_verified"`
	IsFlagged   bool      `db:"is_flagged" json:"is_flagged"`
	IsSuspended bool      `db:"is_suspended" json:"is_suspended"`
	FlagReason  string    `db:"flag_reason" json:"flag_reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsStaff reports whether the user may act on behalf of the platform
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleSupport
}

// AccountBalance represents the current state of one named wallet (hot data)
type AccountBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Wallet            Wallet          `db:"wallet"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// UserWallet is the three-balance view of a user
type UserWallet struct {
	UserId               string          `json:"user_id"`
	MainBalance          decimal.Decimal `json:"main_balance"`
	ContributionsBalance decimal.Decimal `json:"contributions_balance"`
	TipsBalance          decimal.Decimal `json:"tips_balance"`
}

// Total returns the sum of all three wallets.
func (w UserWallet) Total() decimal.Decimal {
	return w.MainBalance.Add(w.ContributionsBalance).Add(w.TipsBalance)
}

// Balance returns the named wallet.
func (w UserWallet) Balance(wallet Wallet) decimal.Decimal {
	switch wallet {
	case WalletMain:
		return w.MainBalance
	case WalletContributions:
		return w.ContributionsBalance
	case WalletTips:
		return w.TipsBalance
	}
	return decimal.Zero
}

// Campaign is the per-campaign funds aggregate
type Campaign struct {
	Id            string          `db:"id"`
	CreatorId     string          `db:"creator_id"`
	Title         string          `db:"title"`
	MinimumAmount decimal.Decimal `db:"minimum_amount"`
	CurrentAmount decimal.Decimal `db:"current_amount"`
	ClaimedAmount decimal.Decimal `db:"claimed_amount"`
	Status        CampaignStatus  `db:"status"`
	CloseReason   string          `db:"close_reason"`
	Version       int64           `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Claimable is the raised-but-not-yet-claimed remainder.
func (c *Campaign) Claimable() decimal.Decimal {
	return c.CurrentAmount.Sub(c.ClaimedAmount)
}

// IsUnderFunded reports whether the raised total is below the minimum.
func (c *Campaign) IsUnderFunded() bool {
	return c.CurrentAmount.LessThan(c.MinimumAmount)
}

// Contribution is a funding record. Tips share the shape and differ by Kind.
type Contribution struct {
	Id         string             `db:"id"`
	CampaignId string             `db:"campaign_id"`
	PayerId    string             `db:"payer_id"`
	Kind       FundingKind        `db:"kind"`
	Amount     decimal.Decimal    `db:"amount"`
	Message    string             `db:"message"`
	Status     ContributionStatus `db:"status"`
	CreatedAt  time.Time          `db:"created_at"`
	RefundedAt *time.Time         `db:"refunded_at"`
}

// Transaction represents immutable transaction history (cold data)
type Transaction struct {
	Id            string            `db:"id"`
	UserId        string            `db:"user_id"`
	CampaignId    string            `db:"campaign_id"`
	Kind          TransactionKind   `db:"kind"`
	Wallet        string            `db:"wallet"`
	Amount        decimal.Decimal   `db:"amount"`
	BalanceBefore decimal.Decimal   `db:"balance_before"`
	BalanceAfter  decimal.Decimal   `db:"balance_after"`
	ExternalTxId  string            `db:"external_transaction_id"`
	Reference     string            `db:"reference"`
	Details       string            `db:"details"`
	Status        TransactionStatus `db:"status"`
	CreatedAt     time.Time         `db:"created_at"`
	ProcessedAt   time.Time         `db:"processed_at"`
}

// JournalEntry is one leg of the double-entry record behind a transaction
type JournalEntry struct {
	Id            string          `db:"id"`
	TransactionId string          `db:"transaction_id"`
	AccountType   string          `db:"account_type"`
	AccountId     string          `db:"account_id"`
	DebitAmount   decimal.Decimal `db:"debit_amount"`
	CreditAmount  decimal.Decimal `db:"credit_amount"`
	CreatedAt     time.Time       `db:"created_at"`
}

// AuditEntry records an administrative or punitive change to an account
type AuditEntry struct {
	Id        string    `db:"id" json:"id"`
	ActorId   string    `db:"actor_id" json:"actor_id"`
	SubjectId string    `db:"subject_id" json:"subject_id"`
	Action    string    `db:"action" json:"action"`
	OldValue  string    `db:"old_value" json:"old_value"`
	NewValue  string    `db:"new_value" json:"new_value"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OutboxEvent is a domain event waiting for delivery
type OutboxEvent struct {
	Id          string     `db:"id"`
	EventType   string     `db:"event_type"`
	UserId      string     `db:"user_id"`
	TemplateId  string     `db:"template_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	Attempts    int        `db:"attempts"`
	LastError   string     `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
	DeliveredAt *time.Time `db:"delivered_at"`
}
