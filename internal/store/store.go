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

package store

import (
	"context"
	"errors"
	"fmt"

	"crowdfund-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by the ledger, the service layer and the HTTP mapping.
var (
	ErrValidation             = errors.New("validation error")
	ErrUnauthorized           = errors.New("not authorized")
	ErrKycRequired            = errors.New("kyc verification required")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientClaimable  = errors.New("insufficient claimable amount")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// InsufficientBalanceError reports how far a debit fell short.
type InsufficientBalanceError struct {
	UserId    string
	Wallet    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance in %s for user %s: requested %s, available %s, shortfall %s",
		e.Wallet, e.UserId, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// WalletMovement credits or debits a single named wallet and records it.
type WalletMovement struct {
	UserId       string
	Wallet       models.Wallet
	Amount       decimal.Decimal // always positive; direction comes from the call
	Kind         models.TransactionKind
	CampaignId   string
	ExternalTxId string
	Reference    string
	Status       models.TransactionStatus // defaults to completed
	Counterparty string                   // journal account on the other side; derived from Kind when empty
}

// MultiWalletDebit drains wallets in Order until Amount is covered.
type MultiWalletDebit struct {
	UserId       string
	Amount       decimal.Decimal
	Order        []models.Wallet // defaults to models.DefaultDebitOrder
	Kind         models.TransactionKind
	CampaignId   string
	Reference    string
	Counterparty string
}

// WalletLeg is the portion of a multi-wallet debit taken from one wallet.
type WalletLeg struct {
	Wallet models.Wallet   `json:"wallet"`
	Amount decimal.Decimal `json:"amount"`
}

// DebitResult is the applied outcome of DebitAcrossWallets.
type DebitResult struct {
	Transaction *models.Transaction
	Legs        []WalletLeg
}

// TransferParams moves funds between two wallets of the same user.
type TransferParams struct {
	UserId    string
	From      models.Wallet
	To        models.Wallet
	Amount    decimal.Decimal
	Kind      models.TransactionKind
	Reference string
}

// TransactionParams is a raw TransactionLog append, used for entries that
// carry no wallet movement of their own (e.g. a zero-amount closure record).
type TransactionParams struct {
	UserId     string
	CampaignId string
	Kind       models.TransactionKind
	Wallet     string
	Amount     decimal.Decimal
	Reference  string
	Details    string
	Status     models.TransactionStatus
}

// ContributionFilter narrows ListByCampaign. Zero values match everything.
type ContributionFilter struct {
	Kind   models.FundingKind
	Status models.ContributionStatus
}

// EventParams enqueues a domain event into the outbox.
type EventParams struct {
	EventType  string
	UserId     string
	TemplateId string
	Payload    any
}

// CreateCampaignParams contains the parameters for creating a campaign.
type CreateCampaignParams struct {
	CreatorId     string
	Title         string
	MinimumAmount decimal.Decimal
}

// LedgerTx is the ledger surface available inside one database transaction.
// Every method participates in the caller's transaction; nothing commits until
// RunInTx's callback returns nil.
type LedgerTx interface {
	// --- UserWalletLedger ---
	GetWallet(ctx context.Context, userId string) (models.UserWallet, error)
	Credit(ctx context.Context, m WalletMovement) (*models.Transaction, error)
	Debit(ctx context.Context, m WalletMovement) (*models.Transaction, error)
	DebitAcrossWallets(ctx context.Context, p MultiWalletDebit) (*DebitResult, error)
	Transfer(ctx context.Context, p TransferParams) (*models.Transaction, error)

	// --- CampaignLedger ---
	CreateCampaign(ctx context.Context, p CreateCampaignParams) (*models.Campaign, error)
	GetCampaign(ctx context.Context, campaignId string) (*models.Campaign, error)
	Raise(ctx context.Context, campaignId string, amount decimal.Decimal) (*models.Campaign, error)
	Claim(ctx context.Context, campaignId string, amount decimal.Decimal) (*models.Campaign, error)
	TransitionStatus(ctx context.Context, campaignId string, from, to models.CampaignStatus, reason string) error

	// --- ContributionStore ---
	AppendContribution(ctx context.Context, c *models.Contribution) error
	MarkRefunded(ctx context.Context, contributionId string) error
	ListByCampaign(ctx context.Context, campaignId string, filter ContributionFilter) ([]models.Contribution, error)

	// --- TransactionLog ---
	AppendTransaction(ctx context.Context, p TransactionParams) (*models.Transaction, error)
	SumTransactions(ctx context.Context, campaignId string, kind models.TransactionKind) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	UpdatePendingStatus(ctx context.Context, transactionId string, status models.TransactionStatus) error
	HasExternalTransaction(ctx context.Context, externalTxId string) (bool, error)

	// --- User directory, audit and outbox ---
	GetUser(ctx context.Context, userId string) (*models.User, error)
	FlagUser(ctx context.Context, actorId, userId, reason string, suspend bool) error
	SetUserRole(ctx context.Context, actorId, userId string, role models.Role, reason string) error
	SetUserKyc(ctx context.Context, actorId, userId string, verified bool) error
	EnqueueEvent(ctx context.Context, p EventParams) error
}

// LedgerStore defines the contract the service layer relies on.
type LedgerStore interface {
	RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string, role models.Role, kycVerified bool) (*models.User, error)

	// --- Reads ---
	GetUserWallet(ctx context.Context, userId string) (models.UserWallet, error)
	GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
	GetCampaign(ctx context.Context, campaignId string) (*models.Campaign, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
	GetCampaignTransactions(ctx context.Context, campaignId string) ([]models.Transaction, error)
	GetAuditLog(ctx context.Context, subjectId string) ([]models.AuditEntry, error)
	ReconcileWallet(ctx context.Context, userId string, wallet models.Wallet) error

	// --- Outbox ---
	ListPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkEventDelivered(ctx context.Context, eventId string) error
	MarkEventFailed(ctx context.Context, eventId, lastError string, maxAttempts int) error

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
