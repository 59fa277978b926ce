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
	"errors"
	"flag"
	"fmt"

	"crowdfund-ledger-go/internal/common"
	"crowdfund-ledger-go/internal/config"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// bridgeOperator identifies deposits recorded by the payment-gateway bridge.
var bridgeOperator = models.Actor{UserId: "payment-bridge", Role: models.RoleSupport, RequestId: "deposit-cli"}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Email of the user to credit (required)")
	amountFlag := flag.String("amount", "", "Confirmed payment amount (required)")
	externalIdFlag := flag.String("external-id", "", "Payment gateway transaction id (required)")
	flag.Parse()

	if *emailFlag == "" || *amountFlag == "" || *externalIdFlag == "" {
		zap.L().Fatal("All flags are required: --email, --amount and --external-id")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := services.DbService.GetUserByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
	}

	result, err := services.Ledger.Deposit(ctx, bridgeOperator, user.Id, amount, *externalIdFlag)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Info("Deposit already processed, nothing to do",
				zap.String("user_id", user.Id),
				zap.String("external_tx_id", *externalIdFlag))
			return
		}
		zap.L().Fatal("Deposit failed", zap.Error(err))
	}

	common.PrintHeader("DEPOSIT PROCESSED", common.DefaultWidth)
	fmt.Printf("User:           %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Transaction:    %s\n", result.TransactionId)
	fmt.Printf("Amount:         %s\n", result.Amount.String())
	fmt.Printf("Main balance:   %s\n", result.Wallet.MainBalance.String())
	common.PrintSeparator("=", common.DefaultWidth)
}
