package graphql

import (
	"github.com/graphql-go/graphql"
)

var (
	// Scalar types. Amounts are decimal wei strings, addresses and hashes
	// are lowercase hex strings.
	bigIntType  = graphql.String
	addressType = graphql.String
	hashType    = graphql.String

	// Object types
	tokenType       *graphql.Object
	tradeType       *graphql.Object
	analyticsType   *graphql.Object
	marketStatsType *graphql.Object
	pageInfoType    *graphql.Object

	// Connection types
	tokenConnectionType *graphql.Object
	tradeConnectionType *graphql.Object

	// Input types
	paginationInputType *graphql.InputObject
	tradeSideEnumType   *graphql.Enum
)

func init() {
	initTypes()
}

func initTypes() {
	tradeSideEnumType = graphql.NewEnum(graphql.EnumConfig{
		Name:        "TradeSide",
		Description: "Direction of a bonding curve trade",
		Values: graphql.EnumValueConfigMap{
			"BUY": &graphql.EnumValueConfig{
				Value: "buy",
			},
			"SELL": &graphql.EnumValueConfig{
				Value: "sell",
			},
		},
	})

	tokenType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Token",
		Description: "A token launched on the bonding curve",
		Fields: graphql.Fields{
			"address": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
			},
			"creator": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"symbol": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"soldSupply": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"totalRaised": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"lastPrice": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"graduated": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
			"graduatedAt": &graphql.Field{
				Type: graphql.String,
			},
			"createdAtBlock": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"createdAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"updatedAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
		},
	})

	tradeType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Trade",
		Description: "A single buy or sell against a token's bonding curve",
		Fields: graphql.Fields{
			"hash": &graphql.Field{
				Type: graphql.NewNonNull(hashType),
			},
			"token": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
			},
			"trader": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
			},
			"side": &graphql.Field{
				Type: graphql.NewNonNull(tradeSideEnumType),
			},
			"bnbAmount": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"tokenAmount": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"price": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"fee": &graphql.Field{
				Type: bigIntType,
			},
			"blockNumber": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"timestamp": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
		},
	})

	analyticsType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "DailyAnalytics",
		Description: "Per-token trading aggregates for one UTC day",
		Fields: graphql.Fields{
			"token": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
			},
			"date": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"buyVolume": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"sellVolume": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"fees": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"tradeCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
			"updatedAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
		},
	})

	marketStatsType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "MarketStats",
		Description: "Market-wide launchpad counters",
		Fields: graphql.Fields{
			"tokenCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
			"graduatedCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
			"tradeCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
			"totalVolume": &graphql.Field{
				Type: graphql.NewNonNull(bigIntType),
			},
			"updatedAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
		},
	})

	pageInfoType = graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
			"hasPreviousPage": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
		},
	})

	tokenConnectionType = graphql.NewObject(graphql.ObjectConfig{
		Name: "TokenConnection",
		Fields: graphql.Fields{
			"nodes": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(tokenType)),
			},
			"totalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
			"pageInfo": &graphql.Field{
				Type: graphql.NewNonNull(pageInfoType),
			},
		},
	})

	tradeConnectionType = graphql.NewObject(graphql.ObjectConfig{
		Name: "TradeConnection",
		Fields: graphql.Fields{
			"nodes": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(tradeType)),
			},
			"pageInfo": &graphql.Field{
				Type: graphql.NewNonNull(pageInfoType),
			},
		},
	})

	paginationInputType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PaginationInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"limit": &graphql.InputObjectFieldConfig{
				Type: graphql.Int,
			},
			"offset": &graphql.InputObjectFieldConfig{
				Type: graphql.Int,
			},
		},
	})
}
