package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind represents the type of launchpad chain event
type Kind string

const (
	// KindTokenCreated represents a new token launched on the bonding curve
	KindTokenCreated Kind = "token_created"

	// KindTokenBought represents a buy against a token's bonding curve
	KindTokenBought Kind = "token_bought"

	// KindTokenSold represents a sell against a token's bonding curve
	KindTokenSold Kind = "token_sold"

	// KindTokenGraduated represents a token reaching its graduation threshold
	KindTokenGraduated Kind = "token_graduated"

	// KindDetailedTransaction represents the enriched trade event carrying fees
	KindDetailedTransaction Kind = "detailed_transaction"
)

// AllKinds returns every event kind the launchpad contract emits
func AllKinds() []Kind {
	return []Kind{
		KindTokenCreated,
		KindTokenBought,
		KindTokenSold,
		KindTokenGraduated,
		KindDetailedTransaction,
	}
}

// Event is the base interface for all launchpad chain events
type Event interface {
	// Kind returns the event kind
	Kind() Kind

	// Token returns the address of the token the event concerns
	Token() common.Address

	// TxHash returns the transaction hash that emitted the event
	TxHash() common.Hash

	// Block returns the block number the event was emitted in
	Block() uint64

	// OccurredAt returns the chain timestamp of the event
	OccurredAt() time.Time
}

// TokenCreated represents a token launch event
type TokenCreated struct {
	// Address of the launched token
	Address common.Address

	// Creator who launched the token
	Creator common.Address

	// Name of the token
	Name string

	// Symbol of the token
	Symbol string

	// Hash of the emitting transaction
	Hash common.Hash

	// Number of the emitting block
	Number uint64

	// Time is the chain timestamp
	Time time.Time
}

// Kind implements Event interface
func (e *TokenCreated) Kind() Kind { return KindTokenCreated }

// Token implements Event interface
func (e *TokenCreated) Token() common.Address { return e.Address }

// TxHash implements Event interface
func (e *TokenCreated) TxHash() common.Hash { return e.Hash }

// Block implements Event interface
func (e *TokenCreated) Block() uint64 { return e.Number }

// OccurredAt implements Event interface
func (e *TokenCreated) OccurredAt() time.Time { return e.Time }

// TokenBought represents a buy against the bonding curve
type TokenBought struct {
	// Address of the token bought
	Address common.Address

	// Buyer address
	Buyer common.Address

	// BNBAmount spent, in wei
	BNBAmount *big.Int

	// TokenAmount received, in base units
	TokenAmount *big.Int

	// Hash of the emitting transaction
	Hash common.Hash

	// Number of the emitting block
	Number uint64

	// Time is the chain timestamp
	Time time.Time
}

// Kind implements Event interface
func (e *TokenBought) Kind() Kind { return KindTokenBought }

// Token implements Event interface
func (e *TokenBought) Token() common.Address { return e.Address }

// TxHash implements Event interface
func (e *TokenBought) TxHash() common.Hash { return e.Hash }

// Block implements Event interface
func (e *TokenBought) Block() uint64 { return e.Number }

// OccurredAt implements Event interface
func (e *TokenBought) OccurredAt() time.Time { return e.Time }

// TokenSold represents a sell against the bonding curve
type TokenSold struct {
	// Address of the token sold
	Address common.Address

	// Seller address
	Seller common.Address

	// BNBAmount returned, in wei
	BNBAmount *big.Int

	// TokenAmount sold back, in base units
	TokenAmount *big.Int

	// Hash of the emitting transaction
	Hash common.Hash

	// Number of the emitting block
	Number uint64

	// Time is the chain timestamp
	Time time.Time
}

// Kind implements Event interface
func (e *TokenSold) Kind() Kind { return KindTokenSold }

// Token implements Event interface
func (e *TokenSold) Token() common.Address { return e.Address }

// TxHash implements Event interface
func (e *TokenSold) TxHash() common.Hash { return e.Hash }

// Block implements Event interface
func (e *TokenSold) Block() uint64 { return e.Number }

// OccurredAt implements Event interface
func (e *TokenSold) OccurredAt() time.Time { return e.Time }

// TokenGraduated represents a token completing its bonding curve
type TokenGraduated struct {
	// Address of the graduated token
	Address common.Address

	// Hash of the emitting transaction
	Hash common.Hash

	// Number of the emitting block
	Number uint64

	// Time is the chain timestamp
	Time time.Time
}

// Kind implements Event interface
func (e *TokenGraduated) Kind() Kind { return KindTokenGraduated }

// Token implements Event interface
func (e *TokenGraduated) Token() common.Address { return e.Address }

// TxHash implements Event interface
func (e *TokenGraduated) TxHash() common.Hash { return e.Hash }

// Block implements Event interface
func (e *TokenGraduated) Block() uint64 { return e.Number }

// OccurredAt implements Event interface
func (e *TokenGraduated) OccurredAt() time.Time { return e.Time }

// DetailedTransaction represents the enriched trade event the contract emits
// alongside buys and sells, carrying the platform fee
type DetailedTransaction struct {
	// Address of the traded token
	Address common.Address

	// Trader address
	Trader common.Address

	// IsBuy is true for buys, false for sells
	IsBuy bool

	// BNBAmount moved, in wei
	BNBAmount *big.Int

	// TokenAmount moved, in base units
	TokenAmount *big.Int

	// Fee charged by the platform, in wei
	Fee *big.Int

	// Hash of the emitting transaction
	Hash common.Hash

	// Number of the emitting block
	Number uint64

	// Time is the chain timestamp
	Time time.Time
}

// Kind implements Event interface
func (e *DetailedTransaction) Kind() Kind { return KindDetailedTransaction }

// Token implements Event interface
func (e *DetailedTransaction) Token() common.Address { return e.Address }

// TxHash implements Event interface
func (e *DetailedTransaction) TxHash() common.Hash { return e.Hash }

// Block implements Event interface
func (e *DetailedTransaction) Block() uint64 { return e.Number }

// OccurredAt implements Event interface
func (e *DetailedTransaction) OccurredAt() time.Time { return e.Time }

// Owner returns the address the event concerns beyond the token itself:
// the creator for launches, the trader for buys and sells. Graduation has
// no owner and returns the zero address.
func Owner(ev Event) common.Address {
	switch e := ev.(type) {
	case *TokenCreated:
		return e.Creator
	case *TokenBought:
		return e.Buyer
	case *TokenSold:
		return e.Seller
	case *DetailedTransaction:
		return e.Trader
	default:
		return common.Address{}
	}
}

// Processed is the result of durably applying a chain event. It carries a
// stable identity so redelivered events collapse onto the same record.
type Processed struct {
	// ID is the stable identity "<kind>:<txhash>"
	ID string

	// Kind of the applied event
	Kind Kind

	// Token the event concerns
	Token common.Address

	// Owner is the creator or trader address, zero for graduation
	Owner common.Address

	// Event is the applied variant
	Event Event

	// AppliedAt is when the event was durably applied
	AppliedAt time.Time
}

// ProcessedID derives the stable identity of an applied event
func ProcessedID(kind Kind, tx common.Hash) string {
	return string(kind) + ":" + tx.Hex()
}

// NewProcessed creates a processed-event record for an applied event
func NewProcessed(ev Event) *Processed {
	return &Processed{
		ID:        ProcessedID(ev.Kind(), ev.TxHash()),
		Kind:      ev.Kind(),
		Token:     ev.Token(),
		Owner:     Owner(ev),
		Event:     ev,
		AppliedAt: time.Now(),
	}
}
