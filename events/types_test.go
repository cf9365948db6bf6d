package events

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestEventInterface(t *testing.T) {
	token := common.HexToAddress("0xA0")
	hash := common.Hash{0xde, 0xad}
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		ev   Event
		kind Kind
	}{
		{
			name: "token created",
			ev: &TokenCreated{
				Address: token,
				Creator: common.HexToAddress("0xC0"),
				Name:    "Rabbit",
				Symbol:  "RBT",
				Hash:    hash,
				Number:  42,
				Time:    at,
			},
			kind: KindTokenCreated,
		},
		{
			name: "token bought",
			ev: &TokenBought{
				Address:     token,
				Buyer:       common.HexToAddress("0xB0"),
				BNBAmount:   big.NewInt(1e18),
				TokenAmount: big.NewInt(100),
				Hash:        hash,
				Number:      42,
				Time:        at,
			},
			kind: KindTokenBought,
		},
		{
			name: "token sold",
			ev: &TokenSold{
				Address:     token,
				Seller:      common.HexToAddress("0xB0"),
				BNBAmount:   big.NewInt(5e17),
				TokenAmount: big.NewInt(50),
				Hash:        hash,
				Number:      42,
				Time:        at,
			},
			kind: KindTokenSold,
		},
		{
			name: "token graduated",
			ev: &TokenGraduated{
				Address: token,
				Hash:    hash,
				Number:  42,
				Time:    at,
			},
			kind: KindTokenGraduated,
		},
		{
			name: "detailed transaction",
			ev: &DetailedTransaction{
				Address:     token,
				Trader:      common.HexToAddress("0xB0"),
				IsBuy:       true,
				BNBAmount:   big.NewInt(1e18),
				TokenAmount: big.NewInt(100),
				Fee:         big.NewInt(1e16),
				Hash:        hash,
				Number:      42,
				Time:        at,
			},
			kind: KindDetailedTransaction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ev.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", tt.ev.Kind(), tt.kind)
			}
			if tt.ev.Token() != token {
				t.Errorf("Token() = %s, want %s", tt.ev.Token().Hex(), token.Hex())
			}
			if tt.ev.TxHash() != hash {
				t.Errorf("TxHash() = %s, want %s", tt.ev.TxHash().Hex(), hash.Hex())
			}
			if tt.ev.Block() != 42 {
				t.Errorf("Block() = %d, want 42", tt.ev.Block())
			}
			if !tt.ev.OccurredAt().Equal(at) {
				t.Errorf("OccurredAt() = %v, want %v", tt.ev.OccurredAt(), at)
			}
		})
	}
}

func TestOwner(t *testing.T) {
	creator := common.HexToAddress("0xC0")
	trader := common.HexToAddress("0xB0")

	if got := Owner(&TokenCreated{Creator: creator}); got != creator {
		t.Errorf("Owner(created) = %s, want creator", got.Hex())
	}
	if got := Owner(&TokenBought{Buyer: trader}); got != trader {
		t.Errorf("Owner(bought) = %s, want buyer", got.Hex())
	}
	if got := Owner(&TokenSold{Seller: trader}); got != trader {
		t.Errorf("Owner(sold) = %s, want seller", got.Hex())
	}
	if got := Owner(&DetailedTransaction{Trader: trader}); got != trader {
		t.Errorf("Owner(detailed) = %s, want trader", got.Hex())
	}
	if got := Owner(&TokenGraduated{}); got != (common.Address{}) {
		t.Errorf("Owner(graduated) = %s, want zero address", got.Hex())
	}
}

func TestProcessedID(t *testing.T) {
	hash := common.HexToHash("0xabc123")

	id := ProcessedID(KindTokenBought, hash)
	if id != "token_bought:"+hash.Hex() {
		t.Errorf("ProcessedID = %q", id)
	}

	// Same kind and hash yield the same id regardless of which delivery
	// produced it
	if id != ProcessedID(KindTokenBought, hash) {
		t.Error("ProcessedID is not stable")
	}
	if id == ProcessedID(KindDetailedTransaction, hash) {
		t.Error("different kinds must not collide")
	}
}

func TestNewProcessed(t *testing.T) {
	ev := &TokenSold{
		Address:     common.HexToAddress("0xA0"),
		Seller:      common.HexToAddress("0xB0"),
		BNBAmount:   big.NewInt(1),
		TokenAmount: big.NewInt(2),
		Hash:        common.Hash{9},
		Number:      7,
		Time:        time.Now(),
	}

	p := NewProcessed(ev)
	if p.Kind != KindTokenSold {
		t.Errorf("Kind = %s", p.Kind)
	}
	if p.Token != ev.Address {
		t.Errorf("Token = %s", p.Token.Hex())
	}
	if p.Owner != ev.Seller {
		t.Errorf("Owner = %s", p.Owner.Hex())
	}
	if p.Event != Event(ev) {
		t.Error("Event not carried through")
	}
	if p.AppliedAt.IsZero() {
		t.Error("AppliedAt not set")
	}
}

func TestAllKinds(t *testing.T) {
	kinds := AllKinds()
	if len(kinds) != 5 {
		t.Fatalf("expected 5 kinds, got %d", len(kinds))
	}
	seen := make(map[Kind]bool)
	for _, k := range kinds {
		if seen[k] {
			t.Errorf("duplicate kind %s", k)
		}
		seen[k] = true
	}
}
