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
	"fmt"

	"crowdfund-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (t *ledgerTx) appendAudit(ctx context.Context, actorId, subjectId, action, oldValue, newValue, reason string) error {
	_, err := t.tx.ExecContext(ctx, queryInsertAudit,
		uuid.New().String(), actorId, subjectId, action, oldValue, newValue, reason, now())
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// GetAuditLog returns the audit trail of one subject, oldest first
func (s *Service) GetAuditLog(ctx context.Context, subjectId string) ([]models.AuditEntry, error) {
	zap.L().Debug("Getting audit log", zap.String("subject_id", subjectId))

	rows, err := s.db.QueryContext(ctx, queryGetAuditLog, subjectId)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	defer closeRows(rows)

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		if err := rows.Scan(&entry.Id, &entry.ActorId, &entry.SubjectId, &entry.Action,
			&entry.OldValue, &entry.NewValue, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}
