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

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfund-ledger-go/internal/closure"
	"crowdfund-ledger-go/internal/metrics"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService is the request-level API over the ledger. Authorization and
// validation happen here before any mutation; every mutation runs in one
// ledger transaction.
type LedgerService struct {
	db         store.LedgerStore
	reconciler *closure.Reconciler
}

func NewLedgerService(db store.LedgerStore) *LedgerService {
	return &LedgerService{
		db:         db,
		reconciler: closure.NewReconciler(db),
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// observe records metrics for an operation and logs its failure at a level
// matching the error class.
func (s *LedgerService) observe(operation string, actor models.Actor, start time.Time, err error) {
	metrics.RecordLedgerOperation(operation, time.Since(start), err)
	if err == nil {
		return
	}

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("user_id", actor.UserId),
		zap.String("request_id", actor.RequestId),
		zap.Error(err),
	}
	if IsBusinessError(err) {
		zap.L().Warn("Ledger operation rejected", fields...)
		return
	}
	zap.L().Error("Ledger operation failed", fields...)
}

// IsBusinessError reports whether err is a caller-recoverable rejection
// rather than an unexpected failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		store.ErrValidation,
		store.ErrUnauthorized,
		store.ErrKycRequired,
		store.ErrNotFound,
		store.ErrInvalidState,
		store.ErrInsufficientBalance,
		store.ErrInsufficientClaimable,
		store.ErrDuplicateTransaction,
		store.ErrConcurrentModification,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// requireActiveUser loads the acting user and rejects suspended accounts.
func requireActiveUser(ctx context.Context, tx store.LedgerTx, actor models.Actor) (*models.User, error) {
	if actor.UserId == "" {
		return nil, fmt.Errorf("%w: authenticated user required", store.ErrUnauthorized)
	}
	user, err := tx.GetUser(ctx, actor.UserId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %s", store.ErrUnauthorized, actor.UserId)
		}
		return nil, err
	}
	if user.IsSuspended {
		return nil, fmt.Errorf("%w: account %s is suspended", store.ErrUnauthorized, actor.UserId)
	}
	return user, nil
}

func requireStaff(actor models.Actor) error {
	if !actor.IsStaff() {
		return fmt.Errorf("%w: staff role required", store.ErrUnauthorized)
	}
	return nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", store.ErrValidation, amount.String())
	}
	return nil
}
