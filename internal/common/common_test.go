package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crowdfund-ledger-go/internal/api"
	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleFixtures = `
users:
  - id: ops
    name: Ops
    email: ops@example.com
    role: admin
    kyc_verified: true
  - name: Maria
    email: maria@example.com
    kyc_verified: true
  - name: Tom
    email: tom@example.com
    deposit: "250.00"
campaigns:
  - title: Community fridge
    creator_email: maria@example.com
    minimum_amount: "500"
    activate: true
  - title: Draft idea
    creator_email: maria@example.com
    minimum_amount: "50"
`

func writeFixtures(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFixtures(t *testing.T) {
	fixtures, err := LoadFixtures(writeFixtures(t, sampleFixtures))
	require.NoError(t, err)
	assert.Len(t, fixtures.Users, 3)
	assert.Len(t, fixtures.Campaigns, 2)
	assert.Equal(t, "250.00", fixtures.Users[2].Deposit)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing email":   "users:\n  - name: A\n",
		"bad role":        "users:\n  - name: A\n    email: a@x\n    role: king\n",
		"bad deposit":     "users:\n  - name: A\n    email: a@x\n    deposit: lots\n",
		"bad minimum":     "campaigns:\n  - title: T\n    creator_email: a@x\n    minimum_amount: many\n",
		"malformed yaml":  "users: [",
		"missing creator": "campaigns:\n  - title: T\n    minimum_amount: \"1\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFixtures(writeFixtures(t, content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFixtures(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyFixtures(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	fixtures, err := LoadFixtures(writeFixtures(t, sampleFixtures))
	require.NoError(t, err)

	ledger := api.NewLedgerService(db)
	operator := models.Actor{UserId: "ops", Role: models.RoleAdmin}

	report, err := ApplyFixtures(ctx, db, ledger, operator, fixtures)
	require.NoError(t, err)
	assert.Equal(t, FixtureReport{UsersCreated: 3, Deposits: 1, CampaignsCreated: 2}, report)

	tom, err := db.GetUserByEmail(ctx, "tom@example.com")
	require.NoError(t, err)
	wallet, err := db.GetUserWallet(ctx, tom.Id)
	require.NoError(t, err)
	assert.Equal(t, "250", wallet.MainBalance.String())

	users, err := InitializeUsers(ctx, db, "maria@example.com", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "[user,kyc]", UserFlags(users[0]))

	// users are skipped on re-run
	report, err = ApplyFixtures(ctx, db, ledger, operator, &Fixtures{Users: fixtures.Users})
	require.NoError(t, err)
	assert.Equal(t, 3, report.UsersSkipped)
	assert.Zero(t, report.UsersCreated)
}

func TestShortId(t *testing.T) {
	assert.Equal(t, "none", ShortId(""))
	assert.Equal(t, "abc", ShortId("abc"))
	assert.Equal(t, "12345678...", ShortId("1234567890"))
}

func TestBoxPrefixes(t *testing.T) {
	// detail lines keep the tree rail open except under the last item
	assert.Equal(t, "│  ", BoxPrefix(false))
	assert.Equal(t, "└  ", BoxPrefix(true))
	assert.Equal(t, "│  ", BoxDetailPrefix(false))
	assert.Equal(t, "   ", BoxDetailPrefix(true))
}
