// Package testutil provides shared helpers for package tests.
package testutil

import (
	"math/big"
	"testing"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NewTestLogger creates a development logger for tests
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

// WaitFor polls cond until it returns true or the timeout elapses
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for condition: %s", msg)
}

// TestTime returns a deterministic chain timestamp offset by seq
func TestTime(seq byte) time.Time {
	return time.Unix(1700000000+int64(seq), 0).UTC()
}

// NewTokenCreated returns a creation event for tests. seq determines the
// transaction hash, block number, and timestamp.
func NewTokenCreated(token, creator common.Address, seq byte) *events.TokenCreated {
	return &events.TokenCreated{
		Address: token,
		Creator: creator,
		Name:    "Test Token",
		Symbol:  "TST",
		Hash:    common.Hash{seq},
		Number:  uint64(seq),
		Time:    TestTime(seq),
	}
}

// NewTokenBought returns a buy event for tests
func NewTokenBought(token, buyer common.Address, bnb, tokens int64, seq byte) *events.TokenBought {
	return &events.TokenBought{
		Address:     token,
		Buyer:       buyer,
		BNBAmount:   big.NewInt(bnb),
		TokenAmount: big.NewInt(tokens),
		Hash:        common.Hash{seq},
		Number:      uint64(seq),
		Time:        TestTime(seq),
	}
}

// NewTokenSold returns a sell event for tests
func NewTokenSold(token, seller common.Address, bnb, tokens int64, seq byte) *events.TokenSold {
	return &events.TokenSold{
		Address:     token,
		Seller:      seller,
		BNBAmount:   big.NewInt(bnb),
		TokenAmount: big.NewInt(tokens),
		Hash:        common.Hash{seq},
		Number:      uint64(seq),
		Time:        TestTime(seq),
	}
}

// NewTokenGraduated returns a graduation event for tests
func NewTokenGraduated(token common.Address, seq byte) *events.TokenGraduated {
	return &events.TokenGraduated{
		Address: token,
		Hash:    common.Hash{seq},
		Number:  uint64(seq),
		Time:    TestTime(seq),
	}
}

// NewDetailedTransaction returns an enriched trade event for tests
func NewDetailedTransaction(token, trader common.Address, isBuy bool, bnb, tokens, fee int64, seq byte) *events.DetailedTransaction {
	return &events.DetailedTransaction{
		Address:     token,
		Trader:      trader,
		IsBuy:       isBuy,
		BNBAmount:   big.NewInt(bnb),
		TokenAmount: big.NewInt(tokens),
		Fee:         big.NewInt(fee),
		Hash:        common.Hash{seq},
		Number:      uint64(seq),
		Time:        TestTime(seq),
	}
}
