package jsonrpc

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/storage"
)

// Result mapping helpers. Amounts are decimal wei strings, addresses and
// hashes are lowercase hex strings, timestamps are RFC3339 UTC.

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func tokenToJSON(rec *storage.TokenRecord) map[string]interface{} {
	out := map[string]interface{}{
		"address":        lowerHex(rec.Address),
		"creator":        lowerHex(rec.Creator),
		"name":           rec.Name,
		"symbol":         rec.Symbol,
		"soldSupply":     weiString(rec.SoldSupply),
		"totalRaised":    weiString(rec.TotalRaised),
		"lastPrice":      weiString(rec.LastPrice),
		"graduated":      rec.Graduated,
		"createdAtBlock": rec.CreatedAtBlock,
		"createdAt":      rfc3339(rec.CreatedAt),
		"updatedAt":      rfc3339(rec.UpdatedAt),
	}
	if rec.Graduated && !rec.GraduatedAt.IsZero() {
		out["graduatedAt"] = rfc3339(rec.GraduatedAt)
	} else {
		out["graduatedAt"] = nil
	}
	return out
}

func tradeToJSON(rec *storage.TradeRecord) map[string]interface{} {
	out := map[string]interface{}{
		"hash":        strings.ToLower(rec.Hash.Hex()),
		"token":       lowerHex(rec.Token),
		"trader":      lowerHex(rec.Trader),
		"side":        rec.Side,
		"bnbAmount":   weiString(rec.BNBAmount),
		"tokenAmount": weiString(rec.TokenAmount),
		"price":       weiString(rec.Price),
		"blockNumber": rec.BlockNumber,
		"timestamp":   rfc3339(rec.Timestamp),
	}
	// Fee stays null until the detailed feed attaches it.
	if rec.Fee != nil {
		out["fee"] = rec.Fee.String()
	} else {
		out["fee"] = nil
	}
	return out
}

func analyticsToJSON(rec *storage.AnalyticsRecord) map[string]interface{} {
	return map[string]interface{}{
		"token":      lowerHex(rec.Token),
		"date":       rec.Date,
		"buyVolume":  weiString(rec.BuyVolume),
		"sellVolume": weiString(rec.SellVolume),
		"fees":       weiString(rec.Fees),
		"tradeCount": rec.TradeCount,
		"updatedAt":  rfc3339(rec.UpdatedAt),
	}
}

func statsToJSON(rec *storage.MarketStatsRecord) map[string]interface{} {
	return map[string]interface{}{
		"tokenCount":     rec.TokenCount,
		"graduatedCount": rec.GraduatedCount,
		"tradeCount":     rec.TradeCount,
		"totalVolume":    weiString(rec.TotalVolume),
		"updatedAt":      rfc3339(rec.UpdatedAt),
	}
}
