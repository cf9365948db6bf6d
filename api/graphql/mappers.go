package graphql

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/storage"
)

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

// tokenToMap converts a token record to a GraphQL-friendly map
func (s *Schema) tokenToMap(rec *storage.TokenRecord) map[string]interface{} {
	if rec == nil {
		return nil
	}

	result := map[string]interface{}{
		"address":        lowerHex(rec.Address),
		"creator":        lowerHex(rec.Creator),
		"name":           rec.Name,
		"symbol":         rec.Symbol,
		"soldSupply":     weiString(rec.SoldSupply),
		"totalRaised":    weiString(rec.TotalRaised),
		"lastPrice":      weiString(rec.LastPrice),
		"graduated":      rec.Graduated,
		"graduatedAt":    nil,
		"createdAtBlock": new(big.Int).SetUint64(rec.CreatedAtBlock).String(),
		"createdAt":      rfc3339(rec.CreatedAt),
		"updatedAt":      rfc3339(rec.UpdatedAt),
	}

	if rec.Graduated && !rec.GraduatedAt.IsZero() {
		result["graduatedAt"] = rfc3339(rec.GraduatedAt)
	}

	return result
}

// tradeToMap converts a trade record to a GraphQL-friendly map
func (s *Schema) tradeToMap(rec *storage.TradeRecord) map[string]interface{} {
	if rec == nil {
		return nil
	}

	result := map[string]interface{}{
		"hash":        strings.ToLower(rec.Hash.Hex()),
		"token":       lowerHex(rec.Token),
		"trader":      lowerHex(rec.Trader),
		"side":        rec.Side,
		"bnbAmount":   weiString(rec.BNBAmount),
		"tokenAmount": weiString(rec.TokenAmount),
		"price":       weiString(rec.Price),
		"fee":         nil,
		"blockNumber": new(big.Int).SetUint64(rec.BlockNumber).String(),
		"timestamp":   rfc3339(rec.Timestamp),
	}

	// Fee stays null until the detailed feed attaches it.
	if rec.Fee != nil {
		result["fee"] = rec.Fee.String()
	}

	return result
}

// analyticsToMap converts a daily analytics record to a GraphQL-friendly map
func (s *Schema) analyticsToMap(rec *storage.AnalyticsRecord) map[string]interface{} {
	if rec == nil {
		return nil
	}

	return map[string]interface{}{
		"token":      lowerHex(rec.Token),
		"date":       rec.Date,
		"buyVolume":  weiString(rec.BuyVolume),
		"sellVolume": weiString(rec.SellVolume),
		"fees":       weiString(rec.Fees),
		"tradeCount": int(rec.TradeCount),
		"updatedAt":  rfc3339(rec.UpdatedAt),
	}
}

// marketStatsToMap converts the market counters to a GraphQL-friendly map
func (s *Schema) marketStatsToMap(rec *storage.MarketStatsRecord) map[string]interface{} {
	if rec == nil {
		return nil
	}

	return map[string]interface{}{
		"tokenCount":     int(rec.TokenCount),
		"graduatedCount": int(rec.GraduatedCount),
		"tradeCount":     int(rec.TradeCount),
		"totalVolume":    weiString(rec.TotalVolume),
		"updatedAt":      rfc3339(rec.UpdatedAt),
	}
}
