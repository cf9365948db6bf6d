package graphql

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/storage"
)

var (
	gqlTokenA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	gqlTokenB  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	gqlTokenC  = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	gqlCreator = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	gqlTrader  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func seedStorage(t *testing.T) *storage.MemoryStorage {
	t.Helper()

	store := storage.NewMemoryStorage()
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, addr := range []common.Address{gqlTokenA, gqlTokenB, gqlTokenC} {
		name := fmt.Sprintf("Token %d", i+1)
		symbol := fmt.Sprintf("TOK%d", i+1)
		block := uint64(100 + i)
		if _, err := store.UpsertToken(ctx, addr, &storage.TokenPatch{
			Creator:        &gqlCreator,
			Name:           &name,
			Symbol:         &symbol,
			CreatedAtBlock: &block,
			CreatedAt:      &created,
		}); err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}

	// Three trades against token A, oldest first.
	for i := 1; i <= 3; i++ {
		trade := &storage.TradeRecord{
			Hash:        common.HexToHash(fmt.Sprintf("0x%02x", i)),
			Token:       gqlTokenA,
			Trader:      gqlTrader,
			Side:        storage.SideBuy,
			BNBAmount:   big.NewInt(int64(i) * 1000),
			TokenAmount: big.NewInt(int64(i) * 500),
			Price:       storage.TradePrice(big.NewInt(int64(i)*1000), big.NewInt(int64(i)*500)),
			BlockNumber: uint64(200 + i),
			Timestamp:   created.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.InsertTradeIfAbsent(ctx, trade); err != nil {
			t.Fatalf("seed trade: %v", err)
		}
	}

	if _, err := store.UpsertDailyAnalytics(ctx, gqlTokenA, "2024-05-01", &storage.AnalyticsPatch{
		BuyVolumeDelta:  big.NewInt(6000),
		TradeCountDelta: 3,
	}); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	return store
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	handler, err := NewHandler(seedStorage(t), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return handler
}

// data unwraps a result's data payload, failing the test on resolver errors.
func data(t *testing.T, h *Handler, query string) map[string]interface{} {
	t.Helper()

	result := h.ExecuteQuery(query, nil)
	if len(result.Errors) > 0 {
		t.Fatalf("query %q failed: %v", query, result.Errors)
	}

	m, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape %T", result.Data)
	}
	return m
}

func TestGraphQLHandler(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("GraphQLEndpoint", func(t *testing.T) {
		query := `{"query":"{ marketStats { tokenCount } }"}`
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status OK, got %v", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"tokenCount": 3`) {
			t.Errorf("expected tokenCount in body, got %v", w.Body.String())
		}
	})

	t.Run("GraphQLEndpoint_InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("invalid json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status OK even with invalid JSON, got %v", w.Code)
		}
	})

	t.Run("PlaygroundEndpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playground", nil)
		w := httptest.NewRecorder()

		handler.PlaygroundHandler()(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status OK, got %v", w.Code)
		}
		if !strings.Contains(w.Body.String(), "GraphQL Playground") {
			t.Error("expected GraphQL Playground HTML")
		}
	})

	t.Run("ExecuteQueryJSON", func(t *testing.T) {
		jsonBytes, err := handler.ExecuteQueryJSON(`{ marketStats { tradeCount } }`, nil)
		if err != nil {
			t.Fatalf("failed to execute query JSON: %v", err)
		}
		if !strings.Contains(string(jsonBytes), `"tradeCount":3`) {
			t.Errorf("expected tradeCount in JSON, got %s", jsonBytes)
		}
	})
}

func TestGraphQLSchema(t *testing.T) {
	schema, err := NewSchema(storage.NewMemoryStorage(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	s := schema.Schema()
	if s.QueryType() == nil {
		t.Fatal("expected query type in schema")
	}

	queryFields := s.QueryType().Fields()
	expectedFields := []string{
		"token", "tokens", "trade", "trades", "dailyAnalytics", "marketStats",
	}
	for _, field := range expectedFields {
		if _, exists := queryFields[field]; !exists {
			t.Errorf("expected query field %s to exist", field)
		}
	}
}

func TestGraphQLTypes(t *testing.T) {
	if tokenType == nil {
		t.Error("tokenType should be initialized")
	}
	if tradeType == nil {
		t.Error("tradeType should be initialized")
	}
	if analyticsType == nil {
		t.Error("analyticsType should be initialized")
	}
	if marketStatsType == nil {
		t.Error("marketStatsType should be initialized")
	}
	if pageInfoType == nil {
		t.Error("pageInfoType should be initialized")
	}
	if tokenConnectionType == nil {
		t.Error("tokenConnectionType should be initialized")
	}
	if tradeConnectionType == nil {
		t.Error("tradeConnectionType should be initialized")
	}
	if paginationInputType == nil {
		t.Error("paginationInputType should be initialized")
	}
	if tradeSideEnumType == nil {
		t.Error("tradeSideEnumType should be initialized")
	}
}

func TestResolveToken(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("Found", func(t *testing.T) {
		d := data(t, handler, `{ token(address: "0x1111111111111111111111111111111111111111") { address creator name symbol graduated graduatedAt } }`)

		token, ok := d["token"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected token object, got %v", d["token"])
		}
		if token["address"] != "0x1111111111111111111111111111111111111111" {
			t.Errorf("unexpected address %v", token["address"])
		}
		if token["creator"] != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
			t.Errorf("unexpected creator %v", token["creator"])
		}
		if token["name"] != "Token 1" || token["symbol"] != "TOK1" {
			t.Errorf("unexpected name/symbol %v/%v", token["name"], token["symbol"])
		}
		if token["graduated"] != false {
			t.Errorf("expected graduated false, got %v", token["graduated"])
		}
		if token["graduatedAt"] != nil {
			t.Errorf("expected null graduatedAt, got %v", token["graduatedAt"])
		}
	})

	t.Run("ChecksummedAddress", func(t *testing.T) {
		// EIP-55 spelling resolves to the same token as lowercase.
		checksummed := gqlTokenC.Hex()
		d := data(t, handler, fmt.Sprintf(`{ token(address: %q) { name address } }`, checksummed))

		token, ok := d["token"].(map[string]interface{})
		if !ok || token["name"] != "Token 3" {
			t.Fatalf("expected Token 3 via checksummed lookup, got %v", d["token"])
		}
		if token["address"] != "0xcccccccccccccccccccccccccccccccccccccccc" {
			t.Errorf("expected lowercase address in response, got %v", token["address"])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		d := data(t, handler, `{ token(address: "0x9999999999999999999999999999999999999999") { name } }`)

		if d["token"] != nil {
			t.Errorf("expected null token, got %v", d["token"])
		}
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		result := handler.ExecuteQuery(`{ token(address: "nonsense") { name } }`, nil)
		if len(result.Errors) == 0 {
			t.Error("expected error for invalid address")
		}
	})
}

func TestResolveTokens(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("FirstPage", func(t *testing.T) {
		d := data(t, handler, `{ tokens(pagination: {limit: 2}) { nodes { address } totalCount pageInfo { hasNextPage hasPreviousPage } } }`)

		conn := d["tokens"].(map[string]interface{})
		nodes := conn["nodes"].([]interface{})
		if len(nodes) != 2 {
			t.Fatalf("expected 2 nodes, got %d", len(nodes))
		}
		if conn["totalCount"] != 3 {
			t.Errorf("expected totalCount 3, got %v", conn["totalCount"])
		}

		pageInfo := conn["pageInfo"].(map[string]interface{})
		if pageInfo["hasNextPage"] != true {
			t.Error("expected hasNextPage true")
		}
		if pageInfo["hasPreviousPage"] != false {
			t.Error("expected hasPreviousPage false")
		}
	})

	t.Run("LastPage", func(t *testing.T) {
		d := data(t, handler, `{ tokens(pagination: {limit: 2, offset: 2}) { nodes { address } pageInfo { hasNextPage hasPreviousPage } } }`)

		conn := d["tokens"].(map[string]interface{})
		nodes := conn["nodes"].([]interface{})
		if len(nodes) != 1 {
			t.Fatalf("expected 1 node, got %d", len(nodes))
		}

		pageInfo := conn["pageInfo"].(map[string]interface{})
		if pageInfo["hasNextPage"] != false {
			t.Error("expected hasNextPage false")
		}
		if pageInfo["hasPreviousPage"] != true {
			t.Error("expected hasPreviousPage true")
		}
	})
}

func TestResolveTrade(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("FeeNullUntilAttached", func(t *testing.T) {
		d := data(t, handler, `{ trade(hash: "0x0000000000000000000000000000000000000000000000000000000000000002") { token trader side bnbAmount tokenAmount fee } }`)

		trade, ok := d["trade"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected trade object, got %v", d["trade"])
		}
		if trade["side"] != "buy" {
			t.Errorf("expected buy side, got %v", trade["side"])
		}
		if trade["bnbAmount"] != "2000" || trade["tokenAmount"] != "1000" {
			t.Errorf("unexpected amounts %v/%v", trade["bnbAmount"], trade["tokenAmount"])
		}
		if trade["fee"] != nil {
			t.Errorf("expected null fee, got %v", trade["fee"])
		}
	})

	t.Run("AttachedFee", func(t *testing.T) {
		store := seedStorage(t)
		hash := common.HexToHash("0x01")
		if _, err := store.AttachTradeFee(context.Background(), hash, big.NewInt(25)); err != nil {
			t.Fatalf("attach fee: %v", err)
		}

		h, err := NewHandler(store, zap.NewNop())
		if err != nil {
			t.Fatalf("failed to create handler: %v", err)
		}

		d := data(t, h, `{ trade(hash: "0x0000000000000000000000000000000000000000000000000000000000000001") { fee } }`)
		trade := d["trade"].(map[string]interface{})
		if trade["fee"] != "25" {
			t.Errorf("expected fee 25, got %v", trade["fee"])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		d := data(t, handler, `{ trade(hash: "0x00000000000000000000000000000000000000000000000000000000000000ff") { side } }`)
		if d["trade"] != nil {
			t.Errorf("expected null trade, got %v", d["trade"])
		}
	})
}

func TestResolveTrades(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("NewestFirst", func(t *testing.T) {
		d := data(t, handler, `{ trades(token: "0x1111111111111111111111111111111111111111") { nodes { hash bnbAmount } pageInfo { hasNextPage } } }`)

		conn := d["trades"].(map[string]interface{})
		nodes := conn["nodes"].([]interface{})
		if len(nodes) != 3 {
			t.Fatalf("expected 3 trades, got %d", len(nodes))
		}

		first := nodes[0].(map[string]interface{})
		if first["bnbAmount"] != "3000" {
			t.Errorf("expected newest trade first, got %v", first["bnbAmount"])
		}

		pageInfo := conn["pageInfo"].(map[string]interface{})
		if pageInfo["hasNextPage"] != false {
			t.Error("expected hasNextPage false")
		}
	})

	t.Run("Paginated", func(t *testing.T) {
		d := data(t, handler, `{ trades(token: "0x1111111111111111111111111111111111111111", pagination: {limit: 2}) { nodes { bnbAmount } pageInfo { hasNextPage } } }`)

		conn := d["trades"].(map[string]interface{})
		nodes := conn["nodes"].([]interface{})
		if len(nodes) != 2 {
			t.Fatalf("expected 2 trades, got %d", len(nodes))
		}

		pageInfo := conn["pageInfo"].(map[string]interface{})
		if pageInfo["hasNextPage"] != true {
			t.Error("expected hasNextPage true")
		}
	})

	t.Run("UnknownTokenEmpty", func(t *testing.T) {
		d := data(t, handler, `{ trades(token: "0x9999999999999999999999999999999999999999") { nodes { hash } } }`)

		conn := d["trades"].(map[string]interface{})
		nodes, _ := conn["nodes"].([]interface{})
		if len(nodes) != 0 {
			t.Errorf("expected no trades, got %d", len(nodes))
		}
	})
}

func TestResolveDailyAnalytics(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("Found", func(t *testing.T) {
		d := data(t, handler, `{ dailyAnalytics(token: "0x1111111111111111111111111111111111111111", date: "2024-05-01") { date buyVolume sellVolume tradeCount } }`)

		analytics, ok := d["dailyAnalytics"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected analytics object, got %v", d["dailyAnalytics"])
		}
		if analytics["date"] != "2024-05-01" {
			t.Errorf("unexpected date %v", analytics["date"])
		}
		if analytics["buyVolume"] != "6000" {
			t.Errorf("expected buyVolume 6000, got %v", analytics["buyVolume"])
		}
		if analytics["sellVolume"] != "0" {
			t.Errorf("expected sellVolume 0, got %v", analytics["sellVolume"])
		}
		if analytics["tradeCount"] != 3 {
			t.Errorf("expected tradeCount 3, got %v", analytics["tradeCount"])
		}
	})

	t.Run("MissingDayIsNull", func(t *testing.T) {
		d := data(t, handler, `{ dailyAnalytics(token: "0x1111111111111111111111111111111111111111", date: "2024-05-02") { tradeCount } }`)

		if d["dailyAnalytics"] != nil {
			t.Errorf("expected null analytics, got %v", d["dailyAnalytics"])
		}
	})

	t.Run("BadDate", func(t *testing.T) {
		result := handler.ExecuteQuery(`{ dailyAnalytics(token: "0x1111111111111111111111111111111111111111", date: "May 1st") { tradeCount } }`, nil)
		if len(result.Errors) == 0 {
			t.Error("expected error for malformed date")
		}
	})
}

func TestResolveMarketStats(t *testing.T) {
	handler := newTestHandler(t)

	d := data(t, handler, `{ marketStats { tokenCount graduatedCount tradeCount totalVolume } }`)

	stats, ok := d["marketStats"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected stats object, got %v", d["marketStats"])
	}
	if stats["tokenCount"] != 3 {
		t.Errorf("expected tokenCount 3, got %v", stats["tokenCount"])
	}
	if stats["graduatedCount"] != 0 {
		t.Errorf("expected graduatedCount 0, got %v", stats["graduatedCount"])
	}
	if stats["tradeCount"] != 3 {
		t.Errorf("expected tradeCount 3, got %v", stats["tradeCount"])
	}
	if stats["totalVolume"] != "6000" {
		t.Errorf("expected totalVolume 6000, got %v", stats["totalVolume"])
	}
}
