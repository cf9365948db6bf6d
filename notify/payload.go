package notify

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/storage"
)

// Envelope is the body posted to the webhook endpoint.
type Envelope struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Timestamp string     `json:"timestamp"`
	Data      *EventData `json:"data"`
}

// EventData carries the event fields: amounts as decimal wei strings,
// addresses and hashes lowercase hex, times unix milliseconds. Fields not
// applicable to the event kind are omitted.
type EventData struct {
	Token      string `json:"token"`
	Owner      string `json:"owner,omitempty"`
	Block      uint64 `json:"block"`
	TxHash     string `json:"txHash"`
	OccurredAt int64  `json:"occurredAt"`

	Creator     string `json:"creator,omitempty"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Trader      string `json:"trader,omitempty"`
	Side        string `json:"side,omitempty"`
	BNBAmount   string `json:"bnbAmount,omitempty"`
	TokenAmount string `json:"tokenAmount,omitempty"`
	Fee         string `json:"fee,omitempty"`
}

// newEnvelope maps a processed event onto the webhook body
func newEnvelope(pr *events.Processed) *Envelope {
	data := &EventData{
		Token:      strings.ToLower(pr.Token.Hex()),
		Block:      pr.Event.Block(),
		TxHash:     strings.ToLower(pr.Event.TxHash().Hex()),
		OccurredAt: pr.Event.OccurredAt().UnixMilli(),
	}
	if pr.Owner != (common.Address{}) {
		data.Owner = strings.ToLower(pr.Owner.Hex())
	}

	switch ev := pr.Event.(type) {
	case *events.TokenCreated:
		data.Creator = strings.ToLower(ev.Creator.Hex())
		data.Name = ev.Name
		data.Symbol = ev.Symbol
	case *events.TokenBought:
		data.Trader = strings.ToLower(ev.Buyer.Hex())
		data.Side = storage.SideBuy
		data.BNBAmount = weiString(ev.BNBAmount)
		data.TokenAmount = weiString(ev.TokenAmount)
	case *events.TokenSold:
		data.Trader = strings.ToLower(ev.Seller.Hex())
		data.Side = storage.SideSell
		data.BNBAmount = weiString(ev.BNBAmount)
		data.TokenAmount = weiString(ev.TokenAmount)
	case *events.DetailedTransaction:
		data.Trader = strings.ToLower(ev.Trader.Hex())
		if ev.IsBuy {
			data.Side = storage.SideBuy
		} else {
			data.Side = storage.SideSell
		}
		data.BNBAmount = weiString(ev.BNBAmount)
		data.TokenAmount = weiString(ev.TokenAmount)
		data.Fee = weiString(ev.Fee)
	}

	return &Envelope{
		ID:        pr.ID,
		Kind:      string(pr.Kind),
		Timestamp: pr.AppliedAt.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
