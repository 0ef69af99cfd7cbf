package entity

// ModuleKind is the structural module a position belongs to, as reported
// (or inferred) from the upstream provider.
type ModuleKind string

const (
	ModuleFarming   ModuleKind = "farming"
	ModuleLending   ModuleKind = "lending"
	ModuleStaking   ModuleKind = "staking"
	ModuleLiquidity ModuleKind = "liquidity"
	ModuleYield     ModuleKind = "yield"
	ModuleOther     ModuleKind = "other"
)

// PositionKind is the canonical kind of a position after provider-specific
// type mapping. Unmapped upstream types become PositionKindOther explicitly,
// never silently something else.
type PositionKind string

const (
	PositionKindSupplied  PositionKind = "supplied"
	PositionKindBorrowed  PositionKind = "borrowed"
	PositionKindStaked    PositionKind = "staked"
	PositionKindFarming   PositionKind = "farming"
	PositionKindYield     PositionKind = "yield"
	PositionKindLiquidity PositionKind = "liquidity"
	PositionKindReward    PositionKind = "reward"
	PositionKindVested    PositionKind = "vested"
	PositionKindLocked    PositionKind = "locked"
	PositionKindLending   PositionKind = "lending"
	PositionKindOther     PositionKind = "other"
)

// Protocol identifies the protocol that owns a position.
type Protocol struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	LogoURL string `json:"logoURL,omitempty"`
}

// PositionDetails carries the kind-specific sub-totals of a position.
// Only the fields relevant to the position kind are populated.
type PositionDetails struct {
	SuppliedValueUSD float64 `json:"suppliedValueUSD,omitempty"`
	BorrowedValueUSD float64 `json:"borrowedValueUSD,omitempty"`
	NetValueUSD      float64 `json:"netValueUSD,omitempty"`
	SuppliedCount    int     `json:"suppliedCount,omitempty"`
	BorrowedCount    int     `json:"borrowedCount,omitempty"`

	StakedValueUSD  float64 `json:"stakedValueUSD,omitempty"`
	RewardsValueUSD float64 `json:"rewardsValueUSD,omitempty"`
	StakedCount     int     `json:"stakedCount,omitempty"`
	RewardsCount    int     `json:"rewardsCount,omitempty"`
}

// AccountData holds optional account-level figures a provider may report
// for a position (lending health factor, net yield rate as a fraction).
type AccountData struct {
	HealthFactor *float64 `json:"healthFactor,omitempty"`
	NetAPR       *float64 `json:"netAPR,omitempty"`
}

// ProjectedEarnings is the optional earnings breakdown derived from a
// position's net yield rate.
type ProjectedEarnings struct {
	DailyUSD   float64 `json:"dailyUSD"`
	MonthlyUSD float64 `json:"monthlyUSD"`
	YearlyUSD  float64 `json:"yearlyUSD"`
}

// Position is one logical DeFi holding after provider-specific aggregation.
// Positions are request-scoped: built fresh per call, never persisted.
type Position struct {
	ID       string          `json:"id"`
	Network  Network         `json:"network"`
	Protocol Protocol        `json:"protocol"`
	Module   ModuleKind      `json:"module"`
	PoolID   string          `json:"poolID,omitempty"`
	Kind     PositionKind    `json:"kind"`
	Tokens   []PositionToken `json:"tokens"`
	Details  PositionDetails `json:"details"`

	Account  *AccountData       `json:"account,omitempty"`
	Earnings *ProjectedEarnings `json:"projectedEarnings,omitempty"`

	// TotalValueUSD is always derived by the enrichment step from the
	// constituent tokens, never trusted from upstream.
	TotalValueUSD float64 `json:"totalValueUSD"`

	HasUnverifiedTokens             bool `json:"hasUnverifiedTokens"`
	IsDisconnectedFromGlobalPricing bool `json:"isDisconnectedFromGlobalPricing"`
}
