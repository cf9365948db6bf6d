package graphql

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/0xmhha/launchpad-go/storage"
)

// pagination extracts limit and offset from the pagination argument,
// clamping the limit to the maximum page size.
func pagination(p graphql.ResolveParams) (limit, offset int) {
	limit = constants.DefaultPageLimit
	if args, ok := p.Args["pagination"].(map[string]interface{}); ok {
		if l, ok := args["limit"].(int); ok && l > 0 {
			if l > constants.MaxPageLimit {
				limit = constants.MaxPageLimit
			} else {
				limit = l
			}
		}
		if o, ok := args["offset"].(int); ok && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func addressArg(p graphql.ResolveParams, name string) (common.Address, error) {
	raw, ok := p.Args[name].(string)
	if !ok {
		return common.Address{}, fmt.Errorf("missing %s argument", name)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address: %s", raw)
	}
	return common.HexToAddress(raw), nil
}

// resolveToken resolves a single token by address. Unknown tokens resolve
// to null rather than an error.
func (s *Schema) resolveToken(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context

	addr, err := addressArg(p, "address")
	if err != nil {
		return nil, err
	}

	rec, err := s.storage.GetToken(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		s.logger.Error("failed to get token",
			zap.String("address", addr.Hex()),
			zap.Error(err))
		return nil, err
	}

	return s.tokenToMap(rec), nil
}

// resolveTokens resolves the token list with pagination
func (s *Schema) resolveTokens(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context
	limit, offset := pagination(p)

	// Fetch one extra record to learn whether another page exists.
	recs, err := s.storage.ListTokens(ctx, limit+1, offset)
	if err != nil {
		s.logger.Error("failed to list tokens", zap.Error(err))
		return nil, err
	}

	hasNext := len(recs) > limit
	if hasNext {
		recs = recs[:limit]
	}

	nodes := make([]interface{}, len(recs))
	for i, rec := range recs {
		nodes[i] = s.tokenToMap(rec)
	}

	totalCount := 0
	if stats, err := s.storage.MarketStats(ctx); err == nil {
		totalCount = int(stats.TokenCount)
	}

	return map[string]interface{}{
		"nodes":      nodes,
		"totalCount": totalCount,
		"pageInfo": map[string]interface{}{
			"hasNextPage":     hasNext,
			"hasPreviousPage": offset > 0,
		},
	}, nil
}

// resolveTrade resolves a single trade by transaction hash
func (s *Schema) resolveTrade(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context

	hashStr, ok := p.Args["hash"].(string)
	if !ok {
		return nil, fmt.Errorf("missing hash argument")
	}

	rec, err := s.storage.GetTrade(ctx, common.HexToHash(hashStr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		s.logger.Error("failed to get trade",
			zap.String("hash", hashStr),
			zap.Error(err))
		return nil, err
	}

	return s.tradeToMap(rec), nil
}

// resolveTrades resolves a token's trade history, newest first
func (s *Schema) resolveTrades(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context

	token, err := addressArg(p, "token")
	if err != nil {
		return nil, err
	}
	limit, offset := pagination(p)

	recs, err := s.storage.GetTradesByToken(ctx, token, limit+1, offset)
	if err != nil {
		s.logger.Error("failed to get trades",
			zap.String("token", token.Hex()),
			zap.Error(err))
		return nil, err
	}

	hasNext := len(recs) > limit
	if hasNext {
		recs = recs[:limit]
	}

	nodes := make([]interface{}, len(recs))
	for i, rec := range recs {
		nodes[i] = s.tradeToMap(rec)
	}

	return map[string]interface{}{
		"nodes": nodes,
		"pageInfo": map[string]interface{}{
			"hasNextPage":     hasNext,
			"hasPreviousPage": offset > 0,
		},
	}, nil
}

// resolveDailyAnalytics resolves a token's aggregates for one UTC day
func (s *Schema) resolveDailyAnalytics(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context

	token, err := addressArg(p, "token")
	if err != nil {
		return nil, err
	}

	date, ok := p.Args["date"].(string)
	if !ok {
		return nil, fmt.Errorf("missing date argument")
	}
	if _, err := time.Parse(storage.DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid date %q, want %s", date, storage.DateFormat)
	}

	rec, err := s.storage.GetDailyAnalytics(ctx, token, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		s.logger.Error("failed to get daily analytics",
			zap.String("token", token.Hex()),
			zap.String("date", date),
			zap.Error(err))
		return nil, err
	}

	return s.analyticsToMap(rec), nil
}

// resolveMarketStats resolves the market-wide counters
func (s *Schema) resolveMarketStats(p graphql.ResolveParams) (interface{}, error) {
	ctx := p.Context

	rec, err := s.storage.MarketStats(ctx)
	if err != nil {
		s.logger.Error("failed to get market stats", zap.Error(err))
		return nil, err
	}

	return s.marketStatsToMap(rec), nil
}
