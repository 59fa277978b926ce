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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, role, kyc_verified, is_flagged, is_suspended, flag_reason, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, role, kyc_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, role, kyc_verified, is_flagged, is_suspended, flag_reason, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, role, kyc_verified, is_flagged, is_suspended, flag_reason, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	queryFlagUser = `
		UPDATE users
		SET is_flagged = 1, is_suspended = CASE WHEN ? THEN 1 ELSE is_suspended END, flag_reason = ?, updated_at = ?
		WHERE id = ?`

	queryUpdateUserRole = `
		UPDATE users SET role = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserKyc = `
		UPDATE users SET kyc_verified = ?, updated_at = ? WHERE id = ?`

	// Balance queries
	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND wallet = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, user_id, wallet, balance, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND wallet = ? AND version = ?`

	queryGetUserWallets = `
		SELECT wallet, balance
		FROM account_balances
		WHERE user_id = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, wallet, balance, last_transaction_id, version, updated_at
		FROM account_balances
		WHERE user_id = ?
		ORDER BY wallet`

	queryGetWalletJournal = `
		SELECT debit_amount, credit_amount
		FROM journal_entries
		WHERE account_type = 'user_wallet' AND account_id = ?`

	// Campaign queries
	queryInsertCampaign = `
		INSERT INTO campaigns (id, creator_id, title, minimum_amount, current_amount, claimed_amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, '0', '0', ?, ?, ?)`

	queryGetCampaign = `
		SELECT id, creator_id, title, minimum_amount, current_amount, claimed_amount, status, close_reason, version, created_at, updated_at
		FROM campaigns
		WHERE id = ?`

	queryUpdateCampaignAmounts = `
		UPDATE campaigns
		SET current_amount = ?, claimed_amount = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryTransitionCampaignStatus = `
		UPDATE campaigns
		SET status = ?, close_reason = CASE WHEN ? != '' THEN ? ELSE close_reason END, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`

	queryCampaignExists = `
		SELECT status FROM campaigns WHERE id = ?`

	// Contribution queries
	queryInsertContribution = `
		INSERT INTO contributions (id, campaign_id, payer_id, kind, amount, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryMarkContributionRefunded = `
		UPDATE contributions
		SET status = 'refunded', refunded_at = ?
		WHERE id = ? AND status = 'active'`

	queryContributionExists = `
		SELECT status FROM contributions WHERE id = ?`

	queryListContributions = `
		SELECT id, campaign_id, payer_id, kind, amount, message, status, created_at, refunded_at
		FROM contributions
		WHERE campaign_id = ?
		  AND (? = '' OR kind = ?)
		  AND (? = '' OR status = ?)
		ORDER BY created_at ASC, rowid ASC`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE external_transaction_id = ? LIMIT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, campaign_id, kind, wallet, amount, balance_before, balance_after,
			external_transaction_id, reference, details, status, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	transactionColumns = `
		id, user_id, campaign_id, kind, wallet, amount, balance_before, balance_after,
		external_transaction_id, reference, details, status, created_at, processed_at`

	queryGetTransaction = `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryGetTransactionHistory = `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetCampaignTransactions = `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE campaign_id = ?
		ORDER BY created_at ASC, rowid ASC`

	querySumTransactionAmounts = `
		SELECT amount
		FROM transactions
		WHERE campaign_id = ? AND kind = ? AND status != 'failed'`

	queryUpdatePendingTransaction = `
		UPDATE transactions
		SET status = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	// Audit queries
	queryInsertAudit = `
		INSERT INTO audit_log (id, actor_id, subject_id, action, old_value, new_value, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAuditLog = `
		SELECT id, actor_id, subject_id, action, old_value, new_value, reason, created_at
		FROM audit_log
		WHERE subject_id = ?
		ORDER BY created_at ASC, rowid ASC`

	// Outbox queries
	queryInsertOutboxEvent = `
		INSERT INTO outbox (id, event_type, user_id, template_id, payload, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', 0, ?)`

	queryListPendingEvents = `
		SELECT id, event_type, user_id, template_id, payload, status, attempts, last_error, created_at, delivered_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`

	queryMarkEventDelivered = `
		UPDATE outbox SET status = 'sent', delivered_at = ? WHERE id = ? AND status = 'pending'`

	queryMarkEventFailed = `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN 'dead' ELSE 'pending' END
		WHERE id = ? AND status = 'pending'`
)
