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
	"fmt"
	"time"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"go.uber.org/zap"
)

// SetRole changes a user's role. Admin only; audited.
func (s *LedgerService) SetRole(ctx context.Context, actor models.Actor, userId string, role models.Role, reason string) (user *models.User, err error) {
	defer func(start time.Time) { s.observe("set_role", actor, start, err) }(time.Now())

	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", store.ErrUnauthorized)
	}
	if actor.UserId == userId {
		return nil, fmt.Errorf("%w: cannot change own role", store.ErrValidation)
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if err := tx.SetUserRole(ctx, actor.UserId, userId, role, reason); err != nil {
			return err
		}
		user, err = tx.GetUser(ctx, userId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User role changed",
		zap.String("actor_id", actor.UserId),
		zap.String("user_id", userId),
		zap.String("role", string(role)))
	return user, nil
}

// SetKyc records the outcome of an identity verification. Staff only.
func (s *LedgerService) SetKyc(ctx context.Context, actor models.Actor, userId string, verified bool) (user *models.User, err error) {
	defer func(start time.Time) { s.observe("set_kyc", actor, start, err) }(time.Now())

	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, func(tx store.LedgerTx) error {
		if err := tx.SetUserKyc(ctx, actor.UserId, userId, verified); err != nil {
			return err
		}
		user, err = tx.GetUser(ctx, userId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User KYC status changed",
		zap.String("actor_id", actor.UserId),
		zap.String("user_id", userId),
		zap.Bool("kyc_verified", verified))
	return user, nil
}

// GetAuditLog returns the audit trail for a user. Staff only.
func (s *LedgerService) GetAuditLog(ctx context.Context, actor models.Actor, userId string) ([]models.AuditEntry, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.db.GetAuditLog(ctx, userId)
}
