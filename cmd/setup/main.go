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
	"crowdfund-ledger-go/internal/models"

	"go.uber.org/zap"
)

// setupOperator is the staff identity fixture deposits and activations are
// recorded under.
var setupOperator = models.Actor{UserId: "setup", Role: models.RoleAdmin, RequestId: "setup"}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fixturesFlag := flag.String("fixtures", "", "Path to fixtures YAML (default: FIXTURES_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	fixturesFile := cfg.Fixtures
	if *fixturesFlag != "" {
		fixturesFile = *fixturesFlag
	}

	zap.L().Info("Loading fixtures", zap.String("file", fixturesFile))
	fixtures, err := common.LoadFixtures(fixturesFile)
	if err != nil {
		zap.L().Fatal("Failed to load fixtures", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	report, err := common.ApplyFixtures(ctx, services.DbService, services.Ledger, setupOperator, fixtures)
	if err != nil {
		zap.L().Fatal("Failed to apply fixtures",
			zap.Int("users_created", report.UsersCreated),
			zap.Int("campaigns_created", report.CampaignsCreated),
			zap.Error(err))
	}

	common.PrintHeader("SETUP SUMMARY", common.DefaultWidth)
	fmt.Printf("Users created:     %d\n", report.UsersCreated)
	fmt.Printf("Users skipped:     %d\n", report.UsersSkipped)
	fmt.Printf("Initial deposits:  %d\n", report.Deposits)
	fmt.Printf("Campaigns created: %d\n", report.CampaignsCreated)
	common.PrintSeparator("=", common.DefaultWidth)

	zap.L().Info("Setup complete",
		zap.Int("users_created", report.UsersCreated),
		zap.Int("users_skipped", report.UsersSkipped),
		zap.Int("campaigns_created", report.CampaignsCreated))
}
