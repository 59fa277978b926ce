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

package notify

import (
	"context"
	"time"

	"crowdfund-ledger-go/internal/metrics"
	"crowdfund-ledger-go/internal/models"

	"go.uber.org/zap"
)

// OutboxStore is the slice of the ledger store the dispatcher needs.
type OutboxStore interface {
	ListPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkEventDelivered(ctx context.Context, eventId string) error
	MarkEventFailed(ctx context.Context, eventId, lastError string, maxAttempts int) error
}

// Dispatcher polls the outbox and hands pending events to a Sender.
type Dispatcher struct {
	store        OutboxStore
	sender       Sender
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewDispatcher(store OutboxStore, sender Sender, cfg models.OutboxConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		store:        store,
		sender:       sender,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start launches the polling loop in the background.
func (d *Dispatcher) Start(ctx context.Context) {
	zap.L().Info("Starting outbox dispatcher",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_attempts", d.maxAttempts))
	go d.pollLoop(ctx)
}

// Stop gracefully stops the dispatcher and waits for the current batch.
func (d *Dispatcher) Stop() {
	zap.L().Info("Stopping outbox dispatcher")
	close(d.stopChan)
	<-d.doneChan
	zap.L().Info("Outbox dispatcher stopped")
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.DispatchPending(ctx)

	for {
		select {
		case <-ticker.C:
			d.DispatchPending(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// DispatchPending delivers one batch of pending events and returns how many
// were delivered. Failures are recorded on the event and never surface to
// the ledger operation that produced it.
func (d *Dispatcher) DispatchPending(ctx context.Context) int {
	events, err := d.store.ListPendingEvents(ctx, d.batchSize)
	if err != nil {
		zap.L().Error("Failed to list pending events", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, event := range events {
		if err := d.sender.Send(ctx, event.UserId, event.TemplateId, event.Payload); err != nil {
			metrics.RecordOutboxDelivery(event.EventType, false)
			zap.L().Warn("Notification delivery failed",
				zap.String("event_id", event.Id),
				zap.String("event_type", event.EventType),
				zap.String("user_id", event.UserId),
				zap.Int("attempt", event.Attempts+1),
				zap.Error(err))
			if markErr := d.store.MarkEventFailed(ctx, event.Id, err.Error(), d.maxAttempts); markErr != nil {
				zap.L().Error("Failed to record delivery failure", zap.String("event_id", event.Id), zap.Error(markErr))
			}
			continue
		}

		metrics.RecordOutboxDelivery(event.EventType, true)
		if err := d.store.MarkEventDelivered(ctx, event.Id); err != nil {
			zap.L().Error("Failed to mark event delivered", zap.String("event_id", event.Id), zap.Error(err))
			continue
		}
		delivered++
	}

	if len(events) > 0 {
		zap.L().Debug("Outbox batch dispatched",
			zap.Int("pending", len(events)),
			zap.Int("delivered", delivered))
	}
	return delivered
}
