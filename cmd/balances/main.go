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

package main

import (
	"context"
	"flag"
	"fmt"

	"crowdfund-ledger-go/internal/common"
	"crowdfund-ledger-go/internal/config"
	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	reconciled        int
	mismatches        int
}

func printBalance(balance models.AccountBalance, isLast bool, reconcileErr error, reconciled bool) {
	check := ""
	if reconciled {
		check = " ✓"
		if reconcileErr != nil {
			check = " ✗"
		}
	}

	fmt.Printf("%s %-15s: %20s (v%d)%s\n",
		common.BoxPrefix(isLast),
		balance.Wallet,
		balance.Balance.String(),
		balance.Version,
		check)

	detail := common.BoxDetailPrefix(isLast)
	fmt.Printf("%s   last_tx: %s, updated: %s\n",
		detail,
		common.ShortId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
	if reconcileErr != nil {
		fmt.Printf("%s   mismatch: %s\n", detail, reconcileErr.Error())
	}
}

func printUserHeader(user common.UserInfo, total string) {
	fmt.Printf("\n┌─ User: %s (%s) %s\n", user.Name, user.Email, common.UserFlags(user))
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Total: %s\n", total)
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, user common.UserInfo, dbService *database.Service, reconcile bool, stats *balanceStats) error {
	balances, err := dbService.GetAllUserBalances(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get balances: %w", err)
	}

	wallet, err := dbService.GetUserWallet(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}
	if !wallet.Total().IsZero() {
		stats.usersWithBalances++
	}

	printUserHeader(user, wallet.Total().String())
	for i, balance := range balances {
		var reconcileErr error
		if reconcile {
			reconcileErr = dbService.ReconcileWallet(ctx, user.Id, balance.Wallet)
			if reconcileErr != nil {
				stats.mismatches++
			} else {
				stats.reconciled++
			}
		}
		printBalance(balance, i == len(balances)-1, reconcileErr, reconcile)
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify every wallet against the journal")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER WALLET REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := processUser(ctx, user, dbService, *reconcileFlag, &stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold funds", stats.usersWithBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(" | reconciled %d wallets, %d mismatches", stats.reconciled, stats.mismatches)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("wallet_mismatches", stats.mismatches))
}
