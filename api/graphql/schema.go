// Package graphql provides the GraphQL query API over launchpad state:
// tokens, trades, daily analytics, and market-wide stats.
package graphql

import (
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/storage"
)

// Schema holds the GraphQL schema
type Schema struct {
	schema  graphql.Schema
	storage storage.Reader
	logger  *zap.Logger
}

// NewSchema creates a new GraphQL schema
func NewSchema(store storage.Reader, logger *zap.Logger) (*Schema, error) {
	s := &Schema{
		storage: store,
		logger:  logger,
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"token": &graphql.Field{
				Type: tokenType,
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(addressType),
					},
				},
				Resolve: s.resolveToken,
			},
			"tokens": &graphql.Field{
				Type: graphql.NewNonNull(tokenConnectionType),
				Args: graphql.FieldConfigArgument{
					"pagination": &graphql.ArgumentConfig{
						Type: paginationInputType,
					},
				},
				Resolve: s.resolveTokens,
			},
			"trade": &graphql.Field{
				Type: tradeType,
				Args: graphql.FieldConfigArgument{
					"hash": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(hashType),
					},
				},
				Resolve: s.resolveTrade,
			},
			"trades": &graphql.Field{
				Type: graphql.NewNonNull(tradeConnectionType),
				Args: graphql.FieldConfigArgument{
					"token": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(addressType),
					},
					"pagination": &graphql.ArgumentConfig{
						Type: paginationInputType,
					},
				},
				Resolve: s.resolveTrades,
			},
			"dailyAnalytics": &graphql.Field{
				Type: analyticsType,
				Args: graphql.FieldConfigArgument{
					"token": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(addressType),
					},
					"date": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
				},
				Resolve: s.resolveDailyAnalytics,
			},
			"marketStats": &graphql.Field{
				Type:    graphql.NewNonNull(marketStatsType),
				Resolve: s.resolveMarketStats,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
	if err != nil {
		return nil, err
	}

	s.schema = schema
	return s, nil
}

// Schema returns the GraphQL schema
func (s *Schema) Schema() graphql.Schema {
	return s.schema
}
