package entity

import "math/big"

// BalanceRequestType defines the type of balance request sent to an EVM node.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native coin balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the balance of an ERC-20 contract.
	TokenBalanceRequest
)

// BalanceRequestItem is a single item in a batched balance request.
type BalanceRequestItem struct {
	ID            string
	Type          BalanceRequestType
	WalletAddress string
	TokenAddress  string
	TokenSymbol   string
	TokenDecimals uint8
}

// BalanceResultItem is the result of one item from a batched balance call.
type BalanceResultItem struct {
	RequestID        string
	WalletAddress    string
	TokenAddress     string
	TokenSymbol      string
	Decimals         uint8
	IsNative         bool
	Balance          *big.Int
	FormattedBalance string
	Error            error
}

// BalanceDetail is one priced wallet balance in the non-DeFi read path.
type BalanceDetail struct {
	TokenAddress     string      `json:"tokenAddress"`
	TokenSymbol      string      `json:"tokenSymbol"`
	Decimals         uint8       `json:"decimals"`
	FormattedBalance string      `json:"formattedBalance"`
	PriceUSD         *float64    `json:"priceUSD,omitempty"`
	ValueUSD         *float64    `json:"valueUSD,omitempty"`
	PriceSource      PriceSource `json:"priceSource,omitempty"`
	IsVerified       bool        `json:"isVerified"`
	IsUnlisted       bool        `json:"isUnlisted"`
	IsNative         bool        `json:"isNative,omitempty"`
	// IsNativeProxyPrice marks a native coin priced via its configured
	// wrapped-token proxy; the value is an approximation.
	IsNativeProxyPrice bool `json:"isNativeProxyPrice,omitempty"`
}

// NetworkBalances is the wallet-balance view for one wallet on one network.
type NetworkBalances struct {
	WalletAddress       string          `json:"walletAddress"`
	Network             Network         `json:"network"`
	Tokens              []BalanceDetail `json:"tokens"`
	TotalValueUSD       float64         `json:"totalValueUSD"`
	HasUnverifiedTokens bool            `json:"hasUnverifiedTokens"`
}
