package entity

// DebankProtocol is the provider-native shape returned by the DeBank-style
// complex-protocol endpoint: one entry per protocol, each carrying raw
// portfolio items that still need grouping.
type DebankProtocol struct {
	ID             string                `json:"id"`
	Chain          string                `json:"chain"`
	Name           string                `json:"name"`
	SiteURL        string                `json:"site_url"`
	LogoURL        string                `json:"logo_url"`
	PortfolioItems []DebankPortfolioItem `json:"portfolio_item_list"`
}

// DebankPortfolioItem is one raw sub-entry. Items sharing a pool id belong
// to the same logical position.
type DebankPortfolioItem struct {
	Name        string       `json:"name"` // module hint, e.g. "Farming", "Lending", "Yield"
	DetailTypes []string     `json:"detail_types"`
	Pool        *DebankPool  `json:"pool"`
	Stats       DebankStats  `json:"stats"`
	Detail      DebankDetail `json:"detail"`
}

// DebankPool identifies the pool a portfolio item belongs to.
type DebankPool struct {
	ID        string `json:"id"`
	AdapterID string `json:"adapter_id,omitempty"`
}

// DebankStats carries the provider's own USD figures. They are used only as
// fallback values; totals are always recomputed downstream.
type DebankStats struct {
	AssetUSDValue float64 `json:"asset_usd_value"`
	DebtUSDValue  float64 `json:"debt_usd_value"`
	NetUSDValue   float64 `json:"net_usd_value"`
}

// DebankDetail holds the token lists of a portfolio item.
type DebankDetail struct {
	SupplyTokens []DebankToken `json:"supply_token_list"`
	BorrowTokens []DebankToken `json:"borrow_token_list"`
	RewardTokens []DebankToken `json:"reward_token_list"`
	TokenList    []DebankToken `json:"token_list"`
	HealthRate   *float64      `json:"health_rate,omitempty"`
	DailyNetRate *float64      `json:"daily_net_rate,omitempty"`
}

// DebankToken is a token as reported by the provider.
type DebankToken struct {
	ID        string  `json:"id"` // contract address, or chain id for native
	Chain     string  `json:"chain"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Decimals  uint8   `json:"decimals"`
	LogoURL   string  `json:"logo_url,omitempty"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	RawAmount string  `json:"raw_amount_str,omitempty"`
	IsNative  bool    `json:"is_native,omitempty"`
}
