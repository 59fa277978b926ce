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

package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"crowdfund-ledger-go/internal/api"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type UserFixture struct {
	Id          string `yaml:"id"`
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	Role        string `yaml:"role"`
	KycVerified bool   `yaml:"kyc_verified"`
	Deposit     string `yaml:"deposit"`
}

type CampaignFixture struct {
	Title         string `yaml:"title"`
	CreatorEmail  string `yaml:"creator_email"`
	MinimumAmount string `yaml:"minimum_amount"`
	Activate      bool   `yaml:"activate"`
}

type Fixtures struct {
	Users     []UserFixture     `yaml:"users"`
	Campaigns []CampaignFixture `yaml:"campaigns"`
}

// FixtureReport counts what ApplyFixtures created.
type FixtureReport struct {
	UsersCreated     int
	UsersSkipped     int
	Deposits         int
	CampaignsCreated int
}

func LoadFixtures(fixturesFile string) (*Fixtures, error) {
	var fixturesPath string
	if filepath.IsAbs(fixturesFile) {
		fixturesPath = fixturesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		fixturesPath = filepath.Join(wd, fixturesFile)
	}

	data, err := os.ReadFile(fixturesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", fixturesFile, err)
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", fixturesFile, err)
	}

	for i, u := range fixtures.Users {
		if u.Name == "" || u.Email == "" {
			return nil, fmt.Errorf("user at index %d missing name or email", i)
		}
		if u.Role != "" {
			if _, err := models.ParseRole(u.Role); err != nil {
				return nil, fmt.Errorf("user at index %d: %w", i, err)
			}
		}
		if u.Deposit != "" {
			if _, err := decimal.NewFromString(u.Deposit); err != nil {
				return nil, fmt.Errorf("user at index %d has invalid deposit %q", i, u.Deposit)
			}
		}
	}
	for i, c := range fixtures.Campaigns {
		if c.Title == "" || c.CreatorEmail == "" {
			return nil, fmt.Errorf("campaign at index %d missing title or creator_email", i)
		}
		if _, err := decimal.NewFromString(c.MinimumAmount); err != nil {
			return nil, fmt.Errorf("campaign at index %d has invalid minimum_amount %q", i, c.MinimumAmount)
		}
	}

	return &fixtures, nil
}

// ApplyFixtures creates the fixture users and campaigns. Users that already
// exist (by email) are skipped, so the command can be re-run safely.
// operator acts for deposits and campaign activation.
func ApplyFixtures(ctx context.Context, db store.LedgerStore, ledger *api.LedgerService, operator models.Actor, fixtures *Fixtures) (FixtureReport, error) {
	var report FixtureReport

	for _, u := range fixtures.Users {
		if _, err := db.GetUserByEmail(ctx, u.Email); err == nil {
			zap.L().Info("User already exists, skipping", zap.String("email", u.Email))
			report.UsersSkipped++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return report, fmt.Errorf("failed to look up %s: %w", u.Email, err)
		}

		role := models.RoleUser
		if u.Role != "" {
			role = models.Role(u.Role)
		}
		id := u.Id
		if id == "" {
			id = uuid.New().String()
		}

		user, err := db.CreateUser(ctx, id, u.Name, u.Email, role, u.KycVerified)
		if err != nil {
			return report, fmt.Errorf("failed to create user %s: %w", u.Email, err)
		}
		report.UsersCreated++

		if u.Deposit == "" {
			continue
		}
		amount := decimal.RequireFromString(u.Deposit)
		if !amount.IsPositive() {
			continue
		}
		if _, err := ledger.Deposit(ctx, operator, user.Id, amount, "fixture:"+user.Id); err != nil {
			return report, fmt.Errorf("failed to fund user %s: %w", u.Email, err)
		}
		report.Deposits++
	}

	for _, c := range fixtures.Campaigns {
		creator, err := db.GetUserByEmail(ctx, c.CreatorEmail)
		if err != nil {
			return report, fmt.Errorf("creator %s for campaign %q: %w", c.CreatorEmail, c.Title, err)
		}

		actor := models.Actor{UserId: creator.Id, Role: creator.Role}
		view, err := ledger.CreateCampaign(ctx, actor, c.Title, decimal.RequireFromString(c.MinimumAmount))
		if err != nil {
			return report, fmt.Errorf("failed to create campaign %q: %w", c.Title, err)
		}
		report.CampaignsCreated++

		if c.Activate {
			if _, err := ledger.ChangeStatus(ctx, operator, view.Id, models.CampaignActive); err != nil {
				return report, fmt.Errorf("failed to activate campaign %q: %w", c.Title, err)
			}
		}

		zap.L().Info("Fixture campaign created",
			zap.String("campaign_id", view.Id),
			zap.String("title", c.Title),
			zap.Bool("active", c.Activate))
	}

	return report, nil
}
