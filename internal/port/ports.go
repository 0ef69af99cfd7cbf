package port

import (
	"context"

	"defi_portfolio/internal/entity"
)

// PricingClient fetches authoritative USD prices for a batch of token
// contract addresses on one network. Addresses without a price appear in
// the failure list, never as zero prices.
type PricingClient interface {
	FetchPrices(ctx context.Context, network entity.Network, addresses []string) (map[string]float64, []entity.PriceFailure, error)
}

// AuthorityLookup queries the external authoritative registry by symbol.
type AuthorityLookup interface {
	FindBySymbols(ctx context.Context, symbols []string) (map[string]entity.AuthorityRecord, error)
}

// RegistryStore is the persistent source of truth behind the verification
// registries. Durability and transaction semantics are owned by the
// implementation.
type RegistryStore interface {
	LoadVerified(ctx context.Context, network entity.Network) ([]entity.VerifiedToken, error)
	LoadUnlisted(ctx context.Context, network entity.Network) ([]entity.UnlistedToken, error)
	LoadMetadata(ctx context.Context, network entity.Network) ([]entity.TokenMetadata, error)
	WriteVerified(ctx context.Context, network entity.Network, token entity.VerifiedToken) error
	WriteUnlisted(ctx context.Context, network entity.Network, token entity.UnlistedToken) error
	WriteMetadata(ctx context.Context, network entity.Network, meta entity.TokenMetadata) error
	RemoveUnlisted(ctx context.Context, network entity.Network, address string) error
}

// NetworkMetadataLookup resolves static per-network reference data.
type NetworkMetadataLookup interface {
	GetLogo(network entity.Network) (string, bool)
}

// PositionProvider is one upstream DeFi data source. Each implementation
// owns its provider-specific payload mapping and grouping strategy.
type PositionProvider interface {
	Name() string
	Supports(network entity.Network) bool
	FetchPositions(ctx context.Context, wallet string, network entity.Network) ([]entity.Position, error)
	FetchPositionsMultiNetwork(ctx context.Context, wallet string, networks []entity.Network) (map[entity.Network][]entity.Position, error)
}

// VerificationService classifies token contract addresses against the
// trust registries, performing external lookups only for unknown tokens.
type VerificationService interface {
	ClassifyAndVerify(ctx context.Context, network entity.Network, tokens []entity.TokenRef) (map[string]entity.Verdict, error)
	// Recheck removes an existing unlisted record and classifies the token
	// again. This is the only path that can move a token out of the
	// unlisted state.
	Recheck(ctx context.Context, network entity.Network, token entity.TokenRef) (entity.Verdict, error)
}

// PriceEnrichmentService prices verified tokens from the authoritative
// source and recomputes derived position totals.
type PriceEnrichmentService interface {
	EnrichWithPrices(ctx context.Context, network entity.Network, positions []entity.Position) ([]entity.Position, []entity.PriceFailure)
}

// PortfolioTransformer buckets enriched positions into the category
// grouped output model.
type PortfolioTransformer interface {
	Transform(wallet string, network entity.Network, positions []entity.Position, failures []entity.PriceFailure) *entity.CategoryGroupedPortfolio
}

// PortfolioService is the read path exposed to the surrounding
// application layer.
type PortfolioService interface {
	GetPositions(ctx context.Context, wallet string, network entity.Network) (*entity.CategoryGroupedPortfolio, error)
	GetMultiNetworkPositions(ctx context.Context, wallet string, networks []entity.Network) (*entity.AggregatedPortfolio, error)
}

// BlockchainClient executes batched balance reads against one EVM
// network.
type BlockchainClient interface {
	GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error)
	Network() entity.Network
}

// BlockchainClientProvider hands out cached per-network blockchain
// clients, dialing lazily on first use.
type BlockchainClientProvider interface {
	GetClient(network entity.Network) (BlockchainClient, error)
}

// WalletBalanceService is the plain (non-DeFi) wallet balance read path.
type WalletBalanceService interface {
	GetBalances(ctx context.Context, wallet string, network entity.Network) (*entity.NetworkBalances, error)
}
