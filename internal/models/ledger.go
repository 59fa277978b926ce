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

import "fmt"

// Wallet names one of the three balances every user holds
type Wallet string

const (
	WalletMain          Wallet = "main"
	WalletContributions Wallet = "contributions"
	WalletTips          Wallet = "tips"
)

// AllWallets lists the wallets in storage order.
var AllWallets = []Wallet{WalletMain, WalletContributions, WalletTips}

// DefaultDebitOrder is the drain order used when a creator has to pay back funds.
var DefaultDebitOrder = []Wallet{WalletContributions, WalletTips, WalletMain}

func (w Wallet) Valid() bool {
	switch w {
	case WalletMain, WalletContributions, WalletTips:
		return true
	}
	return false
}

// TransactionKind enumerates every balance-affecting event
type TransactionKind string

const (
	TxContribution        TransactionKind = "contribution"
	TxClaim               TransactionKind = "claim"
	TxRefund              TransactionKind = "refund"
	TxContributionReclaim TransactionKind = "contribution_reclaim"
	TxCampaignClosure     TransactionKind = "campaign_closure"
	TxTip                 TransactionKind = "tip"
	TxTipClaim            TransactionKind = "tip_claim"
	TxConversion          TransactionKind = "conversion"
	TxDeposit             TransactionKind = "deposit"
	TxWithdrawal          TransactionKind = "withdrawal"
)

type TransactionStatus string

const (
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
	TxStatusPending   TransactionStatus = "pending"
)

type ContributionStatus string

const (
	ContributionActive   ContributionStatus = "active"
	ContributionRefunded ContributionStatus = "refunded"
)

// FundingKind distinguishes contributions from tips in the contribution store
type FundingKind string

const (
	FundingContribution FundingKind = "contribution"
	FundingTip          FundingKind = "tip"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleSupport, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CampaignStatus is the campaign lifecycle state
type CampaignStatus string

const (
	CampaignPending          CampaignStatus = "pending"
	CampaignActive           CampaignStatus = "active"
	CampaignOnProgress       CampaignStatus = "on_progress"
	CampaignCompleted        CampaignStatus = "completed"
	CampaignCancelled        CampaignStatus = "cancelled"
	CampaignClosed           CampaignStatus = "closed"
	CampaignClosedWithRefund CampaignStatus = "closed_with_refund"
	CampaignFlagged          CampaignStatus = "flagged"
)

var terminalStatuses = []CampaignStatus{
	CampaignCompleted, CampaignCancelled, CampaignClosed, CampaignClosedWithRefund, CampaignFlagged,
}

// campaignTransitions is the only place legal status moves are defined.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignPending:    {CampaignActive, CampaignCancelled},
	CampaignActive:     append([]CampaignStatus{CampaignOnProgress}, terminalStatuses...),
	CampaignOnProgress: terminalStatuses,
}

func ParseCampaignStatus(s string) (CampaignStatus, error) {
	st := CampaignStatus(s)
	if _, ok := campaignTransitions[st]; ok {
		return st, nil
	}
	for _, t := range terminalStatuses {
		if t == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
}

// CanTransitionTo reports whether from -> to is a legal move.
func (s CampaignStatus) CanTransitionTo(to CampaignStatus) bool {
	for _, next := range campaignTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOpen reports whether the campaign accepts funds and claims.
func (s CampaignStatus) IsOpen() bool {
	return s == CampaignActive || s == CampaignOnProgress
}

func (s CampaignStatus) IsTerminal() bool {
	_, hasNext := campaignTransitions[s]
	return !hasNext
}
