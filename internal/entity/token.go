package entity

import "strings"

// TokenRole describes what a token contributes to its position.
type TokenRole string

const (
	TokenRoleSupplied   TokenRole = "supplied"
	TokenRoleBorrowed   TokenRole = "borrowed"
	TokenRoleReward     TokenRole = "reward"
	TokenRoleUnderlying TokenRole = "underlying"
	TokenRoleGeneric    TokenRole = "generic"
)

// PriceSource tags where a token's USD price came from.
type PriceSource string

const (
	// PriceSourceAuthoritative means the price was fetched from the
	// designated pricing source. Only verified tokens carry it.
	PriceSourceAuthoritative PriceSource = "authoritative"
	// PriceSourceProviderFallback means the position provider's own
	// price/value was retained.
	PriceSourceProviderFallback PriceSource = "provider-fallback"
)

// PositionToken is one token entry inside a Position.
type PositionToken struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name,omitempty"`
	Address          string    `json:"address"` // canonicalized to lowercase
	Decimals         uint8     `json:"decimals"`
	Role             TokenRole `json:"role"`
	RawBalance       string    `json:"rawBalance,omitempty"`
	Balance          float64   `json:"balance"`
	FormattedBalance string    `json:"formattedBalance,omitempty"`

	PriceUSD    *float64    `json:"priceUSD,omitempty"`
	ValueUSD    *float64    `json:"valueUSD,omitempty"`
	PriceSource PriceSource `json:"priceSource,omitempty"`

	IsVerified bool `json:"isVerified"`
	IsUnlisted bool `json:"isUnlisted"`
	IsNative   bool `json:"isNative,omitempty"`
	IsDebt     bool `json:"isDebt,omitempty"`
	// IsNativeProxyPrice marks a native coin priced via its configured
	// wrapped variant, a known approximation.
	IsNativeProxyPrice bool `json:"isNativeProxyPrice,omitempty"`
}

// CanonicalAddress lowercases a contract address. Registry and cache keys
// only ever see canonical addresses.
func CanonicalAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// TokenRef is the minimal input to verification classification.
type TokenRef struct {
	Address string
	Symbol  string
}
