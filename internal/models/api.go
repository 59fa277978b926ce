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

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string            `json:"id"`
	Kind        TransactionKind   `json:"kind"`
	CampaignId  string            `json:"campaign_id,omitempty"`
	Wallet      string            `json:"wallet"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Reference   string            `json:"reference,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// CampaignView is the public representation of a campaign
type CampaignView struct {
	Id            string          `json:"id"`
	CreatorId     string          `json:"creator_id"`
	Title         string          `json:"title"`
	Status        CampaignStatus  `json:"status"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	ClaimedAmount decimal.Decimal `json:"claimed_amount"`
	Claimable     decimal.Decimal `json:"claimable"`
	TipsTotal     decimal.Decimal `json:"tips_total"`
	TipsClaimed   decimal.Decimal `json:"tips_claimed"`
}

// FundingResult is returned after a contribution or tip
type FundingResult struct {
	ContributionId string          `json:"contribution_id"`
	TransactionId  string          `json:"transaction_id"`
	CampaignId     string          `json:"campaign_id"`
	Amount         decimal.Decimal `json:"amount"`
	CampaignStatus CampaignStatus  `json:"campaign_status"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	Wallet         UserWallet      `json:"wallet"`
}

// ClaimResult is returned after a creator claims campaign funds
type ClaimResult struct {
	CampaignId    string          `json:"campaign_id"`
	Source        FundingKind     `json:"source"`
	ClaimedAmount decimal.Decimal `json:"claimed_amount"`
	TransactionId string          `json:"transaction_id"`
	Remaining     decimal.Decimal `json:"remaining_claimable"`
	Wallet        UserWallet      `json:"wallet"`
}

// CloseResult summarizes the outcome chosen by the closure reconciler
type CloseResult struct {
	CampaignId       string          `json:"campaign_id"`
	Outcome          string          `json:"outcome"`
	Status           CampaignStatus  `json:"status"`
	RefundCount      int             `json:"refund_count"`
	RefundedTotal    decimal.Decimal `json:"refunded_total"`
	CreatorDebited   decimal.Decimal `json:"creator_debited"`
	ReclaimedTotal   decimal.Decimal `json:"reclaimed_total"`
	UnrecoveredTotal decimal.Decimal `json:"unrecovered_total"`
	Deficit          decimal.Decimal `json:"deficit"`
	CreatorFlagged   bool            `json:"creator_flagged"`
}

// WalletOperationResult is returned by deposit, withdrawal and conversion
type WalletOperationResult struct {
	TransactionId string            `json:"transaction_id"`
	Kind          TransactionKind   `json:"kind"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Wallet        UserWallet        `json:"wallet"`
}
