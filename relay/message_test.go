package relay

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/storage"
)

func TestNewMessage(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SellCarriesTraderAndSide", func(t *testing.T) {
		pr := events.NewProcessed(&events.TokenSold{
			Address:     token,
			Seller:      trader,
			BNBAmount:   big.NewInt(900),
			TokenAmount: big.NewInt(450),
			Hash:        common.HexToHash("0x0a"),
			Number:      300,
			Time:        occurred,
		})

		m := newMessage(pr)
		assert.Equal(t, pr.ID, m.ID)
		assert.Equal(t, string(events.KindTokenSold), m.Kind)
		assert.Equal(t, strings.ToLower(trader.Hex()), m.Trader)
		assert.Equal(t, strings.ToLower(trader.Hex()), m.Owner)
		assert.Equal(t, storage.SideSell, m.Side)
		assert.Equal(t, "900", m.BNBAmount)
	})

	t.Run("DetailedCarriesFee", func(t *testing.T) {
		pr := events.NewProcessed(&events.DetailedTransaction{
			Address:     token,
			Trader:      trader,
			IsBuy:       true,
			BNBAmount:   big.NewInt(2000),
			TokenAmount: big.NewInt(1000),
			Fee:         big.NewInt(20),
			Hash:        common.HexToHash("0x0b"),
			Number:      301,
			Time:        occurred,
		})

		m := newMessage(pr)
		assert.Equal(t, storage.SideBuy, m.Side)
		assert.Equal(t, "20", m.Fee)
	})

	t.Run("GraduationOmitsOwner", func(t *testing.T) {
		pr := events.NewProcessed(&events.TokenGraduated{
			Address: token,
			Hash:    common.HexToHash("0x0c"),
			Number:  302,
			Time:    occurred,
		})

		raw, err := json.Marshal(newMessage(pr))
		require.NoError(t, err)

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.NotContains(t, fields, "owner")
		assert.NotContains(t, fields, "side")
		assert.NotContains(t, fields, "fee")
		assert.Equal(t, strings.ToLower(token.Hex()), fields["token"])
	})
}
