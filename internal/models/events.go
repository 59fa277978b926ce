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

import "github.com/shopspring/decimal"

// Outbox event types
const (
	EventContributionReceived = "contribution.received"
	EventTipReceived          = "tip.received"
	EventFundsClaimed         = "funds.claimed"
	EventCampaignClosed       = "campaign.closed"
	EventUserFlagged          = "user.flagged"
	EventRefundIssued         = "refund.issued"
	EventWithdrawalSettled    = "withdrawal.settled"
)

type FundingReceivedEvent struct {
	CampaignId     string          `json:"campaign_id"`
	ContributionId string          `json:"contribution_id"`
	PayerId        string          `json:"payer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Message        string          `json:"message,omitempty"`
}

type FundsClaimedEvent struct {
	CampaignId    string          `json:"campaign_id"`
	Source        FundingKind     `json:"source"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionId string          `json:"transaction_id"`
}

type CampaignClosedEvent struct {
	CampaignId string          `json:"campaign_id"`
	Outcome    string          `json:"outcome"`
	Status     CampaignStatus  `json:"status"`
	Refunded   decimal.Decimal `json:"refunded"`
}

type RefundIssuedEvent struct {
	CampaignId     string          `json:"campaign_id"`
	ContributionId string          `json:"contribution_id"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
}

type UserFlaggedEvent struct {
	Reason    string `json:"reason"`
	Suspended bool   `json:"suspended"`
}

type WithdrawalSettledEvent struct {
	TransactionId string            `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
}
