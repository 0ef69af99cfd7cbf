package entity

// ZerionPositionData is one flat position as returned by the Zerion-style
// wallet positions endpoint. Related positions share a group id.
type ZerionPositionData struct {
	ID         string                   `json:"id"`
	Attributes ZerionPositionAttributes `json:"attributes"`
}

// ZerionPositionAttributes carries the typed payload of a flat position.
type ZerionPositionAttributes struct {
	PositionType string              `json:"position_type"` // "deposit", "loan", "staked", "reward", ...
	GroupID      string              `json:"group_id,omitempty"`
	Protocol     string              `json:"protocol,omitempty"`
	ProtocolURL  string              `json:"protocol_url,omitempty"`
	ProtocolLogo string              `json:"protocol_icon_url,omitempty"`
	Module       string              `json:"module,omitempty"`
	Name         string              `json:"name"`
	Quantity     ZerionQuantity      `json:"quantity"`
	Value        *float64            `json:"value,omitempty"`
	Price        *float64            `json:"price,omitempty"`
	Fungible     ZerionFungibleInfo  `json:"fungible_info"`
	YieldRate    *float64            `json:"yield_rate,omitempty"`
	HealthFactor *float64            `json:"health_factor,omitempty"`
}

// ZerionQuantity is the balance triple the provider reports.
type ZerionQuantity struct {
	Int      string  `json:"int"`
	Decimals uint8   `json:"decimals"`
	Float    float64 `json:"float"`
}

// ZerionFungibleInfo describes the asset behind a position.
type ZerionFungibleInfo struct {
	Symbol          string                 `json:"symbol"`
	Name            string                 `json:"name"`
	Implementations []ZerionImplementation `json:"implementations"`
}

// ZerionImplementation is a per-chain deployment of a fungible asset.
type ZerionImplementation struct {
	ChainID  string `json:"chain_id"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}
