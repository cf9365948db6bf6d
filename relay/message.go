package relay

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/storage"
)

// Message is the Kafka value for one processed event. Amounts are decimal
// wei strings, addresses and hashes lowercase hex, times unix milliseconds.
type Message struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Token      string `json:"token"`
	Owner      string `json:"owner,omitempty"`
	Block      uint64 `json:"block"`
	TxHash     string `json:"txHash"`
	OccurredAt int64  `json:"occurredAt"`
	AppliedAt  int64  `json:"appliedAt"`

	Creator     string `json:"creator,omitempty"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Trader      string `json:"trader,omitempty"`
	Side        string `json:"side,omitempty"`
	BNBAmount   string `json:"bnbAmount,omitempty"`
	TokenAmount string `json:"tokenAmount,omitempty"`
	Fee         string `json:"fee,omitempty"`
}

// newMessage maps a processed event onto its Kafka value
func newMessage(pr *events.Processed) *Message {
	m := &Message{
		ID:         pr.ID,
		Kind:       string(pr.Kind),
		Token:      strings.ToLower(pr.Token.Hex()),
		Block:      pr.Event.Block(),
		TxHash:     strings.ToLower(pr.Event.TxHash().Hex()),
		OccurredAt: pr.Event.OccurredAt().UnixMilli(),
		AppliedAt:  pr.AppliedAt.UnixMilli(),
	}
	if pr.Owner != (common.Address{}) {
		m.Owner = strings.ToLower(pr.Owner.Hex())
	}

	switch ev := pr.Event.(type) {
	case *events.TokenCreated:
		m.Creator = strings.ToLower(ev.Creator.Hex())
		m.Name = ev.Name
		m.Symbol = ev.Symbol
	case *events.TokenBought:
		m.Trader = strings.ToLower(ev.Buyer.Hex())
		m.Side = storage.SideBuy
		m.BNBAmount = weiString(ev.BNBAmount)
		m.TokenAmount = weiString(ev.TokenAmount)
	case *events.TokenSold:
		m.Trader = strings.ToLower(ev.Seller.Hex())
		m.Side = storage.SideSell
		m.BNBAmount = weiString(ev.BNBAmount)
		m.TokenAmount = weiString(ev.TokenAmount)
	case *events.DetailedTransaction:
		m.Trader = strings.ToLower(ev.Trader.Hex())
		if ev.IsBuy {
			m.Side = storage.SideBuy
		} else {
			m.Side = storage.SideSell
		}
		m.BNBAmount = weiString(ev.BNBAmount)
		m.TokenAmount = weiString(ev.TokenAmount)
		m.Fee = weiString(ev.Fee)
	}
	return m
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
