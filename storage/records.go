package storage

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Trade sides
const (
	// SideBuy marks a purchase against the bonding curve
	SideBuy = "buy"

	// SideSell marks a sale against the bonding curve
	SideSell = "sell"
)

// DateFormat is the layout of analytics date keys
const DateFormat = "2006-01-02"

// DayOf returns the UTC calendar day of t in the analytics date format
func DayOf(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// TokenRecord is the persisted state of a launched token
type TokenRecord struct {
	Address        common.Address // Token contract address
	Creator        common.Address // Address that launched the token
	Name           string         // Token name
	Symbol         string         // Token symbol
	SoldSupply     *big.Int       // Tokens sold from the curve (wei)
	TotalRaised    *big.Int       // BNB collected by the curve (wei)
	LastPrice      *big.Int       // Price of the most recent trade (wei per token, 1e18 scale)
	Graduated      bool           // True once the curve target was reached
	GraduatedAt    time.Time      // When graduation happened (zero if not graduated)
	CreatedAtBlock uint64         // Block of the creation event
	CreatedAt      time.Time      // Ledger time of the creation event
	UpdatedAt      time.Time      // Last modification time
}

// Clone returns a deep copy of the record
func (t *TokenRecord) Clone() *TokenRecord {
	if t == nil {
		return nil
	}
	c := *t
	c.SoldSupply = cloneBig(t.SoldSupply)
	c.TotalRaised = cloneBig(t.TotalRaised)
	c.LastPrice = cloneBig(t.LastPrice)
	return &c
}

// TradeRecord is one executed trade against a token's bonding curve
type TradeRecord struct {
	Hash        common.Hash    // Transaction hash (unique per trade)
	Token       common.Address // Token that was traded
	Trader      common.Address // Account that traded
	Side        string         // SideBuy or SideSell
	BNBAmount   *big.Int       // BNB leg of the trade (wei)
	TokenAmount *big.Int       // Token leg of the trade (wei)
	Price       *big.Int       // Effective price (wei per token, 1e18 scale)
	Fee         *big.Int       // Protocol fee (wei), nil until attached
	BlockNumber uint64         // Block the trade landed in
	Timestamp   time.Time      // Ledger time of the trade
}

// Clone returns a deep copy of the record
func (t *TradeRecord) Clone() *TradeRecord {
	if t == nil {
		return nil
	}
	c := *t
	c.BNBAmount = cloneBig(t.BNBAmount)
	c.TokenAmount = cloneBig(t.TokenAmount)
	c.Price = cloneBig(t.Price)
	c.Fee = cloneBig(t.Fee)
	return &c
}

// AnalyticsRecord aggregates a token's activity for one calendar day
type AnalyticsRecord struct {
	Token      common.Address // Token the analytics belong to
	Date       string         // Day in "2006-01-02" form (UTC)
	BuyVolume  *big.Int       // BNB spent buying (wei)
	SellVolume *big.Int       // BNB received selling (wei)
	Fees       *big.Int       // Protocol fees collected (wei)
	TradeCount uint64         // Number of trades
	UpdatedAt  time.Time      // Last modification time
}

// Clone returns a deep copy of the record
func (a *AnalyticsRecord) Clone() *AnalyticsRecord {
	if a == nil {
		return nil
	}
	c := *a
	c.BuyVolume = cloneBig(a.BuyVolume)
	c.SellVolume = cloneBig(a.SellVolume)
	c.Fees = cloneBig(a.Fees)
	return &c
}

// MarketStatsRecord holds market-wide counters
type MarketStatsRecord struct {
	TokenCount     uint64    // Tokens launched
	GraduatedCount uint64    // Tokens that graduated
	TradeCount     uint64    // Trades executed
	TotalVolume    *big.Int  // Cumulative BNB volume across all trades (wei)
	UpdatedAt      time.Time // Last modification time
}

// Clone returns a deep copy of the record
func (m *MarketStatsRecord) Clone() *MarketStatsRecord {
	if m == nil {
		return nil
	}
	c := *m
	c.TotalVolume = cloneBig(m.TotalVolume)
	return &c
}

// WatchRecord is one user's watch on one token
type WatchRecord struct {
	UserID    string         // Authenticated user id (lowercase hex)
	Token     common.Address // Watched token
	Label     string         // User-provided label, may be empty
	CreatedAt time.Time      // When the watch was added
}

// Clone returns a copy of the record
func (w *WatchRecord) Clone() *WatchRecord {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

// TokenPatch describes a partial token update. Nil fields are left
// untouched. Deltas merge into cumulative counters and floor at zero.
type TokenPatch struct {
	Creator         *common.Address // Set the creator
	Name            *string         // Set the name
	Symbol          *string         // Set the symbol
	SoldSupplyDelta *big.Int        // Add to SoldSupply (may be negative)
	RaisedDelta     *big.Int        // Add to TotalRaised (may be negative)
	LastPrice       *big.Int        // Overwrite LastPrice
	CreatedAtBlock  *uint64         // Set the creation block
	CreatedAt       *time.Time      // Set the creation time
}

// AnalyticsPatch describes a partial analytics update. Deltas are
// monotonic: counters only grow.
type AnalyticsPatch struct {
	BuyVolumeDelta  *big.Int // Add to BuyVolume
	SellVolumeDelta *big.Int // Add to SellVolume
	FeeDelta        *big.Int // Add to Fees
	TradeCountDelta uint64   // Add to TradeCount
}

// TradePrice computes the effective price of a trade as BNB per whole
// token at 1e18 scale. Returns zero when the token amount is nil or zero.
func TradePrice(bnbAmount, tokenAmount *big.Int) *big.Int {
	if bnbAmount == nil || tokenAmount == nil || tokenAmount.Sign() == 0 {
		return new(big.Int)
	}
	price := new(big.Int).Mul(bnbAmount, big.NewInt(1e18))
	return price.Quo(price, tokenAmount)
}

// tokenRecordJSON is the serializable version of TokenRecord
type tokenRecordJSON struct {
	Address        string `json:"address"`
	Creator        string `json:"creator"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	SoldSupply     string `json:"soldSupply"`
	TotalRaised    string `json:"totalRaised"`
	LastPrice      string `json:"lastPrice"`
	Graduated      bool   `json:"graduated"`
	GraduatedAt    int64  `json:"graduatedAt"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// encodeTokenRecord serializes a TokenRecord to JSON bytes
func encodeTokenRecord(t *TokenRecord) ([]byte, error) {
	j := &tokenRecordJSON{
		Address:        t.Address.Hex(),
		Creator:        t.Creator.Hex(),
		Name:           t.Name,
		Symbol:         t.Symbol,
		SoldSupply:     bigToString(t.SoldSupply),
		TotalRaised:    bigToString(t.TotalRaised),
		LastPrice:      bigToString(t.LastPrice),
		Graduated:      t.Graduated,
		GraduatedAt:    timeToUnixNano(t.GraduatedAt),
		CreatedAtBlock: t.CreatedAtBlock,
		CreatedAt:      timeToUnixNano(t.CreatedAt),
		UpdatedAt:      timeToUnixNano(t.UpdatedAt),
	}
	return json.Marshal(j)
}

// decodeTokenRecord deserializes a TokenRecord from JSON bytes
func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	var j tokenRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	soldSupply, err := bigFromString(j.SoldSupply)
	if err != nil {
		return nil, fmt.Errorf("%w: sold supply: %v", ErrInvalidData, err)
	}
	totalRaised, err := bigFromString(j.TotalRaised)
	if err != nil {
		return nil, fmt.Errorf("%w: total raised: %v", ErrInvalidData, err)
	}
	lastPrice, err := bigFromString(j.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: last price: %v", ErrInvalidData, err)
	}

	return &TokenRecord{
		Address:        common.HexToAddress(j.Address),
		Creator:        common.HexToAddress(j.Creator),
		Name:           j.Name,
		Symbol:         j.Symbol,
		SoldSupply:     soldSupply,
		TotalRaised:    totalRaised,
		LastPrice:      lastPrice,
		Graduated:      j.Graduated,
		GraduatedAt:    timeFromUnixNano(j.GraduatedAt),
		CreatedAtBlock: j.CreatedAtBlock,
		CreatedAt:      timeFromUnixNano(j.CreatedAt),
		UpdatedAt:      timeFromUnixNano(j.UpdatedAt),
	}, nil
}

// tradeRecordJSON is the serializable version of TradeRecord
type tradeRecordJSON struct {
	Hash        string `json:"hash"`
	Token       string `json:"token"`
	Trader      string `json:"trader"`
	Side        string `json:"side"`
	BNBAmount   string `json:"bnbAmount"`
	TokenAmount string `json:"tokenAmount"`
	Price       string `json:"price"`
	Fee         string `json:"fee,omitempty"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
}

// encodeTradeRecord serializes a TradeRecord to JSON bytes
func encodeTradeRecord(t *TradeRecord) ([]byte, error) {
	j := &tradeRecordJSON{
		Hash:        t.Hash.Hex(),
		Token:       t.Token.Hex(),
		Trader:      t.Trader.Hex(),
		Side:        t.Side,
		BNBAmount:   bigToString(t.BNBAmount),
		TokenAmount: bigToString(t.TokenAmount),
		Price:       bigToString(t.Price),
		BlockNumber: t.BlockNumber,
		Timestamp:   timeToUnixNano(t.Timestamp),
	}
	if t.Fee != nil {
		j.Fee = t.Fee.String()
	}
	return json.Marshal(j)
}

// decodeTradeRecord deserializes a TradeRecord from JSON bytes
func decodeTradeRecord(data []byte) (*TradeRecord, error) {
	var j tradeRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	bnbAmount, err := bigFromString(j.BNBAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: bnb amount: %v", ErrInvalidData, err)
	}
	tokenAmount, err := bigFromString(j.TokenAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: token amount: %v", ErrInvalidData, err)
	}
	price, err := bigFromString(j.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price: %v", ErrInvalidData, err)
	}

	var fee *big.Int
	if j.Fee != "" {
		fee, err = bigFromString(j.Fee)
		if err != nil {
			return nil, fmt.Errorf("%w: fee: %v", ErrInvalidData, err)
		}
	}

	return &TradeRecord{
		Hash:        common.HexToHash(j.Hash),
		Token:       common.HexToAddress(j.Token),
		Trader:      common.HexToAddress(j.Trader),
		Side:        j.Side,
		BNBAmount:   bnbAmount,
		TokenAmount: tokenAmount,
		Price:       price,
		Fee:         fee,
		BlockNumber: j.BlockNumber,
		Timestamp:   timeFromUnixNano(j.Timestamp),
	}, nil
}

// analyticsRecordJSON is the serializable version of AnalyticsRecord
type analyticsRecordJSON struct {
	Token      string `json:"token"`
	Date       string `json:"date"`
	BuyVolume  string `json:"buyVolume"`
	SellVolume string `json:"sellVolume"`
	Fees       string `json:"fees"`
	TradeCount uint64 `json:"tradeCount"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// encodeAnalyticsRecord serializes an AnalyticsRecord to JSON bytes
func encodeAnalyticsRecord(a *AnalyticsRecord) ([]byte, error) {
	j := &analyticsRecordJSON{
		Token:      a.Token.Hex(),
		Date:       a.Date,
		BuyVolume:  bigToString(a.BuyVolume),
		SellVolume: bigToString(a.SellVolume),
		Fees:       bigToString(a.Fees),
		TradeCount: a.TradeCount,
		UpdatedAt:  timeToUnixNano(a.UpdatedAt),
	}
	return json.Marshal(j)
}

// decodeAnalyticsRecord deserializes an AnalyticsRecord from JSON bytes
func decodeAnalyticsRecord(data []byte) (*AnalyticsRecord, error) {
	var j analyticsRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	buyVolume, err := bigFromString(j.BuyVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: buy volume: %v", ErrInvalidData, err)
	}
	sellVolume, err := bigFromString(j.SellVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: sell volume: %v", ErrInvalidData, err)
	}
	fees, err := bigFromString(j.Fees)
	if err != nil {
		return nil, fmt.Errorf("%w: fees: %v", ErrInvalidData, err)
	}

	return &AnalyticsRecord{
		Token:      common.HexToAddress(j.Token),
		Date:       j.Date,
		BuyVolume:  buyVolume,
		SellVolume: sellVolume,
		Fees:       fees,
		TradeCount: j.TradeCount,
		UpdatedAt:  timeFromUnixNano(j.UpdatedAt),
	}, nil
}

// marketStatsJSON is the serializable version of MarketStatsRecord
type marketStatsJSON struct {
	TokenCount     uint64 `json:"tokenCount"`
	GraduatedCount uint64 `json:"graduatedCount"`
	TradeCount     uint64 `json:"tradeCount"`
	TotalVolume    string `json:"totalVolume"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// encodeMarketStats serializes a MarketStatsRecord to JSON bytes
func encodeMarketStats(m *MarketStatsRecord) ([]byte, error) {
	j := &marketStatsJSON{
		TokenCount:     m.TokenCount,
		GraduatedCount: m.GraduatedCount,
		TradeCount:     m.TradeCount,
		TotalVolume:    bigToString(m.TotalVolume),
		UpdatedAt:      timeToUnixNano(m.UpdatedAt),
	}
	return json.Marshal(j)
}

// decodeMarketStats deserializes a MarketStatsRecord from JSON bytes
func decodeMarketStats(data []byte) (*MarketStatsRecord, error) {
	var j marketStatsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	totalVolume, err := bigFromString(j.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: total volume: %v", ErrInvalidData, err)
	}

	return &MarketStatsRecord{
		TokenCount:     j.TokenCount,
		GraduatedCount: j.GraduatedCount,
		TradeCount:     j.TradeCount,
		TotalVolume:    totalVolume,
		UpdatedAt:      timeFromUnixNano(j.UpdatedAt),
	}, nil
}

// watchRecordJSON is the serializable version of WatchRecord
type watchRecordJSON struct {
	UserID    string `json:"userId"`
	Token     string `json:"token"`
	Label     string `json:"label,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// encodeWatchRecord serializes a WatchRecord to JSON bytes
func encodeWatchRecord(w *WatchRecord) ([]byte, error) {
	j := &watchRecordJSON{
		UserID:    w.UserID,
		Token:     w.Token.Hex(),
		Label:     w.Label,
		CreatedAt: timeToUnixNano(w.CreatedAt),
	}
	return json.Marshal(j)
}

// decodeWatchRecord deserializes a WatchRecord from JSON bytes
func decodeWatchRecord(data []byte) (*WatchRecord, error) {
	var j watchRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &WatchRecord{
		UserID:    j.UserID,
		Token:     common.HexToAddress(j.Token),
		Label:     j.Label,
		CreatedAt: timeFromUnixNano(j.CreatedAt),
	}, nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func bigToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigFromString(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", s)
	}
	return v, nil
}

func timeToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeFromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
