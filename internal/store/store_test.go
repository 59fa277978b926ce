package store_test

import (
	"errors"
	"fmt"
	"testing"

	"crowdfund-ledger-go/internal/database"
	"crowdfund-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// The SQLite service must satisfy the contract the service layer relies on.
var _ store.LedgerStore = (*database.Service)(nil)

func TestInsufficientBalanceError(t *testing.T) {
	err := &store.InsufficientBalanceError{
		UserId:    "user1",
		Wallet:    "contributions+tips+main",
		Requested: decimal.RequireFromString("150"),
		Available: decimal.RequireFromString("90.5"),
	}

	if !err.Shortfall().Equal(decimal.RequireFromString("59.5")) {
		t.Errorf("Expected shortfall 59.5, got %s", err.Shortfall())
	}

	wrapped := fmt.Errorf("claim failed: %w", err)
	if !errors.Is(wrapped, store.ErrInsufficientBalance) {
		t.Error("Expected wrapped error to match ErrInsufficientBalance")
	}

	var target *store.InsufficientBalanceError
	if !errors.As(wrapped, &target) || target.UserId != "user1" {
		t.Error("Expected errors.As to recover the typed error")
	}
}
