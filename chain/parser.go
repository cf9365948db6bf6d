package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures of the launchpad contract
var (
	EventSigTokenCreated        = crypto.Keccak256Hash([]byte("TokenCreated(address,address,string,string)"))
	EventSigTokenBought         = crypto.Keccak256Hash([]byte("TokenBought(address,address,uint256,uint256)"))
	EventSigTokenSold           = crypto.Keccak256Hash([]byte("TokenSold(address,address,uint256,uint256)"))
	EventSigTokenGraduated      = crypto.Keccak256Hash([]byte("TokenGraduated(address,uint256)"))
	EventSigDetailedTransaction = crypto.Keccak256Hash([]byte("DetailedTransaction(address,address,bool,uint256,uint256,uint256)"))
)

// ErrUnknownEvent marks a log whose signature is not a launchpad event
var ErrUnknownEvent = errors.New("unknown event signature")

// Parser decodes launchpad contract logs into event variants
type Parser struct {
	contract common.Address
}

// NewParser creates a parser for the given launchpad contract. A zero
// contract address disables the emitter check.
func NewParser(contract common.Address) *Parser {
	return &Parser{contract: contract}
}

// sigForKind maps an event kind to its signature topic
func sigForKind(kind events.Kind) (common.Hash, bool) {
	switch kind {
	case events.KindTokenCreated:
		return EventSigTokenCreated, true
	case events.KindTokenBought:
		return EventSigTokenBought, true
	case events.KindTokenSold:
		return EventSigTokenSold, true
	case events.KindTokenGraduated:
		return EventSigTokenGraduated, true
	case events.KindDetailedTransaction:
		return EventSigDetailedTransaction, true
	default:
		return common.Hash{}, false
	}
}

// Query builds the log filter matching the given event kinds, optionally
// narrowed to specific tokens via the first indexed argument
func (p *Parser) Query(kinds []events.Kind, tokens []common.Address) ethereum.FilterQuery {
	sigs := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		if sig, ok := sigForKind(kind); ok {
			sigs = append(sigs, sig)
		}
	}

	q := ethereum.FilterQuery{
		Topics: [][]common.Hash{sigs},
	}
	if p.contract != (common.Address{}) {
		q.Addresses = []common.Address{p.contract}
	}
	if len(tokens) > 0 {
		hashes := make([]common.Hash, len(tokens))
		for i, token := range tokens {
			hashes[i] = common.BytesToHash(token.Bytes())
		}
		q.Topics = append(q.Topics, hashes)
	}
	return q
}

// Parse decodes a launchpad contract log into its event variant. at is
// the chain timestamp of the emitting block.
func (p *Parser) Parse(log *types.Log, at time.Time) (events.Event, error) {
	if p.contract != (common.Address{}) && log.Address != p.contract {
		return nil, fmt.Errorf("%w: log from %s", ErrUnknownEvent, log.Address.Hex())
	}
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", ErrUnknownEvent)
	}

	switch log.Topics[0] {
	case EventSigTokenCreated:
		return parseTokenCreated(log, at)
	case EventSigTokenBought:
		return parseTokenBought(log, at)
	case EventSigTokenSold:
		return parseTokenSold(log, at)
	case EventSigTokenGraduated:
		return parseTokenGraduated(log, at)
	case EventSigDetailedTransaction:
		return parseDetailedTransaction(log, at)
	default:
		return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, log.Topics[0].Hex())
	}
}

// parseTokenCreated parses TokenCreated(address indexed token, address indexed creator, string name, string symbol)
func parseTokenCreated(log *types.Log, at time.Time) (events.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid TokenCreated event: expected 3 topics, got %d", len(log.Topics))
	}

	name, err := abiString(log.Data, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid TokenCreated event: name: %w", err)
	}
	symbol, err := abiString(log.Data, 1)
	if err != nil {
		return nil, fmt.Errorf("invalid TokenCreated event: symbol: %w", err)
	}

	return &events.TokenCreated{
		Address: common.BytesToAddress(log.Topics[1].Bytes()),
		Creator: common.BytesToAddress(log.Topics[2].Bytes()),
		Name:    name,
		Symbol:  symbol,
		Hash:    log.TxHash,
		Number:  log.BlockNumber,
		Time:    at,
	}, nil
}

// parseTokenBought parses TokenBought(address indexed token, address indexed buyer, uint256 bnbAmount, uint256 tokenAmount)
func parseTokenBought(log *types.Log, at time.Time) (events.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid TokenBought event: expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) != 64 {
		return nil, fmt.Errorf("invalid TokenBought event: expected 64 bytes data, got %d", len(log.Data))
	}

	return &events.TokenBought{
		Address:     common.BytesToAddress(log.Topics[1].Bytes()),
		Buyer:       common.BytesToAddress(log.Topics[2].Bytes()),
		BNBAmount:   new(big.Int).SetBytes(log.Data[0:32]),
		TokenAmount: new(big.Int).SetBytes(log.Data[32:64]),
		Hash:        log.TxHash,
		Number:      log.BlockNumber,
		Time:        at,
	}, nil
}

// parseTokenSold parses TokenSold(address indexed token, address indexed seller, uint256 bnbAmount, uint256 tokenAmount)
func parseTokenSold(log *types.Log, at time.Time) (events.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid TokenSold event: expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) != 64 {
		return nil, fmt.Errorf("invalid TokenSold event: expected 64 bytes data, got %d", len(log.Data))
	}

	return &events.TokenSold{
		Address:     common.BytesToAddress(log.Topics[1].Bytes()),
		Seller:      common.BytesToAddress(log.Topics[2].Bytes()),
		BNBAmount:   new(big.Int).SetBytes(log.Data[0:32]),
		TokenAmount: new(big.Int).SetBytes(log.Data[32:64]),
		Hash:        log.TxHash,
		Number:      log.BlockNumber,
		Time:        at,
	}, nil
}

// parseTokenGraduated parses TokenGraduated(address indexed token, uint256 timestamp).
// The contract emits its own graduation timestamp; when present it takes
// precedence over the block time.
func parseTokenGraduated(log *types.Log, at time.Time) (events.Event, error) {
	if len(log.Topics) != 2 {
		return nil, fmt.Errorf("invalid TokenGraduated event: expected 2 topics, got %d", len(log.Topics))
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid TokenGraduated event: expected 32 bytes data, got %d", len(log.Data))
	}

	graduatedAt := at
	if ts := new(big.Int).SetBytes(log.Data); ts.Sign() > 0 && ts.IsInt64() {
		graduatedAt = time.Unix(ts.Int64(), 0).UTC()
	}

	return &events.TokenGraduated{
		Address: common.BytesToAddress(log.Topics[1].Bytes()),
		Hash:    log.TxHash,
		Number:  log.BlockNumber,
		Time:    graduatedAt,
	}, nil
}

// parseDetailedTransaction parses DetailedTransaction(address indexed token, address indexed trader, bool isBuy, uint256 bnbAmount, uint256 tokenAmount, uint256 fee)
func parseDetailedTransaction(log *types.Log, at time.Time) (events.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid DetailedTransaction event: expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) != 128 {
		return nil, fmt.Errorf("invalid DetailedTransaction event: expected 128 bytes data, got %d", len(log.Data))
	}

	return &events.DetailedTransaction{
		Address:     common.BytesToAddress(log.Topics[1].Bytes()),
		Trader:      common.BytesToAddress(log.Topics[2].Bytes()),
		IsBuy:       new(big.Int).SetBytes(log.Data[0:32]).Sign() > 0,
		BNBAmount:   new(big.Int).SetBytes(log.Data[32:64]),
		TokenAmount: new(big.Int).SetBytes(log.Data[64:96]),
		Fee:         new(big.Int).SetBytes(log.Data[96:128]),
		Hash:        log.TxHash,
		Number:      log.BlockNumber,
		Time:        at,
	}, nil
}

// abiString decodes the dynamic string whose offset sits in head word i.
// Layout: head word holds the byte offset of the length word, the string
// bytes follow the length word.
func abiString(data []byte, word int) (string, error) {
	headEnd := (word + 1) * 32
	if len(data) < headEnd {
		return "", fmt.Errorf("data too short for head word %d", word)
	}

	size := uint64(len(data))

	offsetBig := new(big.Int).SetBytes(data[word*32 : headEnd])
	if !offsetBig.IsUint64() {
		return "", fmt.Errorf("string offset out of range")
	}
	offset := offsetBig.Uint64()
	if offset > size || size-offset < 32 {
		return "", fmt.Errorf("string offset %d beyond data", offset)
	}

	lengthBig := new(big.Int).SetBytes(data[offset : offset+32])
	if !lengthBig.IsUint64() {
		return "", fmt.Errorf("string length out of range")
	}
	length := lengthBig.Uint64()
	start := offset + 32
	if length > size-start {
		return "", fmt.Errorf("string length %d beyond data", length)
	}

	return string(data[start : start+length]), nil
}
