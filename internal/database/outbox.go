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
	"fmt"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnqueueEvent writes a domain event in the caller's transaction, so it is
// only visible to the dispatcher if the ledger change commits.
func (t *ledgerTx) EnqueueEvent(ctx context.Context, p store.EventParams) error {
	if p.EventType == "" {
		return fmt.Errorf("%w: event type is required", store.ErrValidation)
	}

	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	templateId := p.TemplateId
	if templateId == "" {
		templateId = p.EventType
	}

	eventId := uuid.New().String()
	if _, err := t.tx.ExecContext(ctx, queryInsertOutboxEvent, eventId, p.EventType, p.UserId, templateId, payload, now()); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}

	zap.L().Debug("Event enqueued",
		zap.String("event_id", eventId),
		zap.String("event_type", p.EventType),
		zap.String("user_id", p.UserId))
	return nil
}

func (s *Service) ListPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingEvents, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}
	defer closeRows(rows)

	var events []models.OutboxEvent
	for rows.Next() {
		var event models.OutboxEvent
		var deliveredAt sql.NullTime
		if err := rows.Scan(&event.Id, &event.EventType, &event.UserId, &event.TemplateId, &event.Payload,
			&event.Status, &event.Attempts, &event.LastError, &event.CreatedAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if deliveredAt.Valid {
			delivered := deliveredAt.Time
			event.DeliveredAt = &delivered
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (s *Service) MarkEventDelivered(ctx context.Context, eventId string) error {
	if _, err := s.db.ExecContext(ctx, queryMarkEventDelivered, now(), eventId); err != nil {
		return fmt.Errorf("failed to mark event delivered: %w", err)
	}
	return nil
}

// MarkEventFailed records a delivery attempt; the event is retired as dead
// once it has failed maxAttempts times.
func (s *Service) MarkEventFailed(ctx context.Context, eventId, lastError string, maxAttempts int) error {
	if _, err := s.db.ExecContext(ctx, queryMarkEventFailed, lastError, maxAttempts, eventId); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}
