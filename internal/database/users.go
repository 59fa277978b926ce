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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(&user.Id, &user.Name, &user.Email, &role, &user.KycVerified,
		&user.IsFlagged, &user.IsSuspended, &user.FlagReason, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}

		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
		}
		zap.L().Error("Failed to query user by ID", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}

	zap.L().Debug("Retrieved user by ID", zap.String("user_id", userId), zap.String("name", user.Name))
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	zap.L().Debug("Querying user by email", zap.String("email", email))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserByEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, email)
		}
		zap.L().Error("Failed to query user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by email: %w", err)
	}

	zap.L().Debug("Retrieved user by email", zap.String("email", email), zap.String("name", user.Name))
	return user, nil
}

// CreateUser inserts the user together with its three zero wallets.
func (s *Service) CreateUser(ctx context.Context, userId, name, email string, role models.Role, kycVerified bool) (*models.User, error) {
	zap.L().Info("Creating user", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	if userId == "" || strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: user id and email are required", store.ErrValidation)
	}
	if role == "" {
		role = models.RoleUser
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	err := s.RunInTx(ctx, func(ltx store.LedgerTx) error {
		tx := ltx.(*ledgerTx).tx
		ts := now()

		result, err := tx.ExecContext(ctx, queryInsertUser, userId, name, email, string(role), kycVerified, ts, ts)
		if err != nil {
			zap.L().Error("Failed to insert user", zap.String("email", email), zap.Error(err))
			return fmt.Errorf("unable to insert user: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			zap.L().Error("Failed to get rows affected", zap.Error(err))
			return fmt.Errorf("unable to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return fmt.Errorf("%w: user with email %s already exists", store.ErrValidation, email)
		}

		for _, wallet := range models.AllWallets {
			if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), userId, string(wallet), "0", 1, ts); err != nil {
				return fmt.Errorf("unable to create %s wallet: %w", wallet, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User created successfully", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	// Return the created user
	return s.GetUserById(ctx, userId)
}

// GetUser reads a user inside the current transaction.
func (t *ledgerTx) GetUser(ctx context.Context, userId string) (*models.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(ctx, queryGetUserById, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

// FlagUser marks a user as flagged, optionally suspending the account, and
// records the change in the audit log.
func (t *ledgerTx) FlagUser(ctx context.Context, actorId, userId, reason string, suspend bool) error {
	user, err := t.GetUser(ctx, userId)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, queryFlagUser, suspend, reason, now(), userId); err != nil {
		return fmt.Errorf("unable to flag user: %w", err)
	}

	action := "flag"
	if suspend {
		action = "flag_and_suspend"
	}
	oldValue := fmt.Sprintf("flagged=%t suspended=%t", user.IsFlagged, user.IsSuspended)
	newValue := fmt.Sprintf("flagged=true suspended=%t", suspend || user.IsSuspended)
	if err := t.appendAudit(ctx, actorId, userId, action, oldValue, newValue, reason); err != nil {
		return err
	}

	zap.L().Warn("User flagged",
		zap.String("user_id", userId),
		zap.String("actor_id", actorId),
		zap.Bool("suspended", suspend),
		zap.String("reason", reason))
	return nil
}

func (t *ledgerTx) SetUserRole(ctx context.Context, actorId, userId string, role models.Role, reason string) error {
	if _, err := models.ParseRole(string(role)); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	user, err := t.GetUser(ctx, userId)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}

	if _, err := t.tx.ExecContext(ctx, queryUpdateUserRole, string(role), now(), userId); err != nil {
		return fmt.Errorf("unable to update role: %w", err)
	}
	if err := t.appendAudit(ctx, actorId, userId, "role_change", string(user.Role), string(role), reason); err != nil {
		return err
	}

	zap.L().Info("User role changed",
		zap.String("user_id", userId),
		zap.String("actor_id", actorId),
		zap.String("old_role", string(user.Role)),
		zap.String("new_role", string(role)))
	return nil
}

func (t *ledgerTx) SetUserKyc(ctx context.Context, actorId, userId string, verified bool) error {
	user, err := t.GetUser(ctx, userId)
	if err != nil {
		return err
	}
	if user.KycVerified == verified {
		return nil
	}

	if _, err := t.tx.ExecContext(ctx, queryUpdateUserKyc, verified, now(), userId); err != nil {
		return fmt.Errorf("unable to update kyc status: %w", err)
	}
	err = t.appendAudit(ctx, actorId, userId, "kyc_change",
		strconv.FormatBool(user.KycVerified), strconv.FormatBool(verified), "")
	if err != nil {
		return err
	}

	zap.L().Info("User KYC status changed",
		zap.String("user_id", userId),
		zap.String("actor_id", actorId),
		zap.Bool("kyc_verified", verified))
	return nil
}
