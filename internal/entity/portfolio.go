package entity

// PositionCategory is an output bucket of the transformed portfolio view.
type PositionCategory string

const (
	CategoryFarming   PositionCategory = "farming"
	CategoryLending   PositionCategory = "lending"
	CategoryStaking   PositionCategory = "staking"
	CategoryYield     PositionCategory = "yield"
	CategoryRewards   PositionCategory = "rewards"
	CategoryVaults    PositionCategory = "vaults"
	CategoryLiquidity PositionCategory = "liquidity"
	CategoryOther     PositionCategory = "other"
)

// CategoryOrder is the stable output order of category buckets.
var CategoryOrder = []PositionCategory{
	CategoryFarming,
	CategoryLending,
	CategoryStaking,
	CategoryYield,
	CategoryRewards,
	CategoryVaults,
	CategoryLiquidity,
	CategoryOther,
}

// CategoryGroup is one bucket of positions with its derived total.
type CategoryGroup struct {
	Category      PositionCategory `json:"category"`
	Positions     []Position       `json:"positions"`
	TotalValueUSD float64          `json:"totalValueUSD"`
}

// CategoryGroupedPortfolio is the single-network DeFi view for one wallet.
type CategoryGroupedPortfolio struct {
	WalletAddress       string           `json:"walletAddress"`
	Network             Network          `json:"network"`
	NetworkLogoURL      string           `json:"networkLogoURL,omitempty"`
	Categories          []CategoryGroup  `json:"categories"`
	TotalValueUSD       float64          `json:"totalValueUSD"`
	HasUnverifiedTokens bool             `json:"hasUnverifiedTokens"`
	PriceFailures       []PriceFailure   `json:"priceFailures,omitempty"`
	Errors              []PortfolioError `json:"errors,omitempty"`
}

// AggregatedPortfolio is the multi-network view for one wallet.
type AggregatedPortfolio struct {
	WalletAddress       string                               `json:"walletAddress"`
	PortfoliosByNetwork map[Network]CategoryGroupedPortfolio `json:"portfoliosByNetwork"`
	TotalValueUSD       float64                              `json:"totalValueUSD"`
	HasUnverifiedTokens bool                                 `json:"hasUnverifiedTokens"`
	Errors              []PortfolioError                     `json:"errors,omitempty"`
}

// PortfolioError describes a non-fatal failure encountered while building
// a portfolio view (one provider or one network degraded, not the call).
type PortfolioError struct {
	WalletAddress string  `json:"walletAddress,omitempty"`
	Network       Network `json:"network,omitempty"`
	Provider      string  `json:"provider,omitempty"`
	Message       string  `json:"message"`
}

// PriceFailure is one token for which the authoritative price could not be
// obtained during an enrichment pass.
type PriceFailure struct {
	Network Network `json:"network"`
	Address string  `json:"address"`
	Symbol  string  `json:"symbol,omitempty"`
	Reason  string  `json:"reason"`
}
