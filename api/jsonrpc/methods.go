// Package jsonrpc provides a JSON-RPC 2.0 read API over launchpad state,
// mirroring the GraphQL queries for clients that prefer plain RPC.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/0xmhha/launchpad-go/storage"
)

// Handler handles JSON-RPC method calls
type Handler struct {
	storage storage.Reader
	logger  *zap.Logger
}

// NewHandler creates a new JSON-RPC handler
func NewHandler(store storage.Reader, logger *zap.Logger) *Handler {
	return &Handler{
		storage: store,
		logger:  logger,
	}
}

// HandleMethod handles a JSON-RPC method call. Lookups of entities that do
// not exist succeed with a null result; errors are reserved for bad
// requests and store failures.
func (h *Handler) HandleMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case "getToken":
		return h.getToken(ctx, params)
	case "listTokens":
		return h.listTokens(ctx, params)
	case "getTrade":
		return h.getTrade(ctx, params)
	case "getTradesByToken":
		return h.getTradesByToken(ctx, params)
	case "getDailyAnalytics":
		return h.getDailyAnalytics(ctx, params)
	case "getMarketStats":
		return h.getMarketStats(ctx, params)
	default:
		return nil, NewError(MethodNotFound, fmt.Sprintf("method '%s' not found", method), nil)
	}
}

// parseAddress validates and parses a hex address parameter
func parseAddress(raw, name string) (common.Address, *Error) {
	if raw == "" {
		return common.Address{}, NewError(InvalidParams, fmt.Sprintf("missing required parameter: %s", name), nil)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, NewError(InvalidParams, fmt.Sprintf("invalid %s: %s", name, raw), nil)
	}
	return common.HexToAddress(raw), nil
}

// clampPage applies defaults and the maximum page size to limit and offset
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = constants.DefaultPageLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// getToken returns a token by address
func (h *Handler) getToken(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}

	addr, perr := parseAddress(p.Address, "address")
	if perr != nil {
		return nil, perr
	}

	rec, err := h.storage.GetToken(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		h.logger.Error("failed to get token", zap.String("address", p.Address), zap.Error(err))
		return nil, NewError(InternalError, "failed to get token", err.Error())
	}

	return tokenToJSON(rec), nil
}

// listTokens returns the token list with pagination
func (h *Handler) listTokens(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewError(InvalidParams, "invalid params", err.Error())
		}
	}

	limit, offset := clampPage(p.Limit, p.Offset)

	recs, err := h.storage.ListTokens(ctx, limit+1, offset)
	if err != nil {
		h.logger.Error("failed to list tokens", zap.Error(err))
		return nil, NewError(InternalError, "failed to list tokens", err.Error())
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}

	tokens := make([]interface{}, len(recs))
	for i, rec := range recs {
		tokens[i] = tokenToJSON(rec)
	}

	return map[string]interface{}{
		"tokens":  tokens,
		"hasMore": hasMore,
	}, nil
}

// getTrade returns a trade by transaction hash
func (h *Handler) getTrade(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}
	if p.Hash == "" {
		return nil, NewError(InvalidParams, "missing required parameter: hash", nil)
	}

	rec, err := h.storage.GetTrade(ctx, common.HexToHash(p.Hash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		h.logger.Error("failed to get trade", zap.String("hash", p.Hash), zap.Error(err))
		return nil, NewError(InternalError, "failed to get trade", err.Error())
	}

	return tradeToJSON(rec), nil
}

// getTradesByToken returns a token's trades, newest first
func (h *Handler) getTradesByToken(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Token  string `json:"token"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}

	token, perr := parseAddress(p.Token, "token")
	if perr != nil {
		return nil, perr
	}

	limit, offset := clampPage(p.Limit, p.Offset)

	recs, err := h.storage.GetTradesByToken(ctx, token, limit+1, offset)
	if err != nil {
		h.logger.Error("failed to get trades", zap.String("token", p.Token), zap.Error(err))
		return nil, NewError(InternalError, "failed to get trades", err.Error())
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}

	trades := make([]interface{}, len(recs))
	for i, rec := range recs {
		trades[i] = tradeToJSON(rec)
	}

	return map[string]interface{}{
		"trades":  trades,
		"hasMore": hasMore,
	}, nil
}

// getDailyAnalytics returns a token's aggregates for one UTC day
func (h *Handler) getDailyAnalytics(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Token string `json:"token"`
		Date  string `json:"date"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}

	token, perr := parseAddress(p.Token, "token")
	if perr != nil {
		return nil, perr
	}
	if _, err := time.Parse(storage.DateFormat, p.Date); err != nil {
		return nil, NewError(InvalidParams, fmt.Sprintf("invalid date %q, want %s", p.Date, storage.DateFormat), nil)
	}

	rec, err := h.storage.GetDailyAnalytics(ctx, token, p.Date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		h.logger.Error("failed to get daily analytics",
			zap.String("token", p.Token),
			zap.String("date", p.Date),
			zap.Error(err))
		return nil, NewError(InternalError, "failed to get daily analytics", err.Error())
	}

	return analyticsToJSON(rec), nil
}

// getMarketStats returns the market-wide counters
func (h *Handler) getMarketStats(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	rec, err := h.storage.MarketStats(ctx)
	if err != nil {
		h.logger.Error("failed to get market stats", zap.Error(err))
		return nil, NewError(InternalError, "failed to get market stats", err.Error())
	}

	return statsToJSON(rec), nil
}
