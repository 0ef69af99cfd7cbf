package service

import (
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
)

// portfolioTransformerImpl buckets enriched positions into the category
// grouped output view.
type portfolioTransformerImpl struct {
	networkMeta port.NetworkMetadataLookup
	logger      *zap.Logger
}

// NewPortfolioTransformer creates the portfolio transformation service.
func NewPortfolioTransformer(networkMeta port.NetworkMetadataLookup, logger *zap.Logger) port.PortfolioTransformer {
	return &portfolioTransformerImpl{
		networkMeta: networkMeta,
		logger:      logger.Named("PortfolioTransformer"),
	}
}

// categoryFor maps a position onto its output bucket. A plain supply
// deposit outside a lending market reads as a vault deposit.
func categoryFor(pos entity.Position) entity.PositionCategory {
	switch pos.Kind {
	case entity.PositionKindFarming:
		return entity.CategoryFarming
	case entity.PositionKindLending, entity.PositionKindBorrowed:
		return entity.CategoryLending
	case entity.PositionKindStaked:
		return entity.CategoryStaking
	case entity.PositionKindYield:
		return entity.CategoryYield
	case entity.PositionKindReward:
		return entity.CategoryRewards
	case entity.PositionKindSupplied:
		return entity.CategoryVaults
	case entity.PositionKindLiquidity:
		return entity.CategoryLiquidity
	default:
		return entity.CategoryOther
	}
}

// Transform buckets positions into categories in the stable output order,
// deriving group and portfolio totals from the positions themselves.
func (t *portfolioTransformerImpl) Transform(wallet string, network entity.Network, positions []entity.Position, failures []entity.PriceFailure) *entity.CategoryGroupedPortfolio {
	buckets := make(map[entity.PositionCategory][]entity.Position)
	for _, pos := range positions {
		cat := categoryFor(pos)
		buckets[cat] = append(buckets[cat], pos)
	}

	portfolio := &entity.CategoryGroupedPortfolio{
		WalletAddress: wallet,
		Network:       network,
		PriceFailures: failures,
	}
	if logo, ok := t.networkMeta.GetLogo(network); ok {
		portfolio.NetworkLogoURL = logo
	}

	for _, cat := range entity.CategoryOrder {
		group := buckets[cat]
		if len(group) == 0 {
			continue
		}
		groupTotal := 0.0
		for _, pos := range group {
			groupTotal += pos.TotalValueUSD
			if pos.HasUnverifiedTokens {
				portfolio.HasUnverifiedTokens = true
			}
		}
		portfolio.Categories = append(portfolio.Categories, entity.CategoryGroup{
			Category:      cat,
			Positions:     group,
			TotalValueUSD: groupTotal,
		})
		portfolio.TotalValueUSD += groupTotal
	}

	t.logger.Debug("Transformed portfolio",
		zap.String("wallet", wallet),
		zap.String("network", network.String()),
		zap.Int("positions", len(positions)),
		zap.Int("categories", len(portfolio.Categories)))
	return portfolio
}
