package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Filter defines subscription filter conditions for processed events
type Filter struct {
	// Tokens filters by token address - any match passes
	// Empty means no filtering on tokens
	Tokens []common.Address

	// Owners filters by creator/trader address - any match passes
	// Empty means no filtering on owners
	Owners []common.Address

	// MinBNBAmount filters trades by minimum BNB amount in wei (inclusive)
	// Nil means no minimum filtering; non-trade events always pass
	MinBNBAmount *big.Int

	// FromBlock filters events from this block number (inclusive)
	// 0 means no minimum block filtering
	FromBlock uint64

	// ToBlock filters events up to this block number (inclusive)
	// 0 means no maximum block filtering
	ToBlock uint64
}

// NewFilter creates a new empty filter
func NewFilter() *Filter {
	return &Filter{
		Tokens: make([]common.Address, 0),
		Owners: make([]common.Address, 0),
	}
}

// Validate checks if the filter configuration is valid
func (f *Filter) Validate() error {
	if f.FromBlock > 0 && f.ToBlock > 0 {
		if f.FromBlock > f.ToBlock {
			return fmt.Errorf("fromBlock (%d) cannot be greater than toBlock (%d)",
				f.FromBlock, f.ToBlock)
		}
	}

	if f.MinBNBAmount != nil && f.MinBNBAmount.Sign() < 0 {
		return fmt.Errorf("minBNBAmount cannot be negative")
	}

	return nil
}

// tradeBNBAmount extracts the BNB amount from trade-shaped events, nil otherwise
func tradeBNBAmount(ev Event) *big.Int {
	switch e := ev.(type) {
	case *TokenBought:
		return e.BNBAmount
	case *TokenSold:
		return e.BNBAmount
	case *DetailedTransaction:
		return e.BNBAmount
	default:
		return nil
	}
}

// Match checks if a processed event matches this filter
func (f *Filter) Match(p *Processed) bool {
	if p == nil || p.Event == nil {
		return false
	}

	if f.FromBlock > 0 && p.Event.Block() < f.FromBlock {
		return false
	}
	if f.ToBlock > 0 && p.Event.Block() > f.ToBlock {
		return false
	}

	if len(f.Tokens) > 0 {
		matched := false
		for _, addr := range f.Tokens {
			if p.Token == addr {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.Owners) > 0 {
		matched := false
		for _, addr := range f.Owners {
			if p.Owner == addr {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.MinBNBAmount != nil {
		if amount := tradeBNBAmount(p.Event); amount != nil && amount.Cmp(f.MinBNBAmount) < 0 {
			return false
		}
	}

	return true
}

// IsEmpty returns true if the filter has no conditions set
func (f *Filter) IsEmpty() bool {
	return len(f.Tokens) == 0 &&
		len(f.Owners) == 0 &&
		f.MinBNBAmount == nil &&
		f.FromBlock == 0 &&
		f.ToBlock == 0
}

// Clone creates a deep copy of the filter
func (f *Filter) Clone() *Filter {
	clone := &Filter{
		Tokens:    make([]common.Address, len(f.Tokens)),
		Owners:    make([]common.Address, len(f.Owners)),
		FromBlock: f.FromBlock,
		ToBlock:   f.ToBlock,
	}

	copy(clone.Tokens, f.Tokens)
	copy(clone.Owners, f.Owners)

	if f.MinBNBAmount != nil {
		clone.MinBNBAmount = new(big.Int).Set(f.MinBNBAmount)
	}

	return clone
}
