package entity

import "time"

// VerificationStatus is the three-state trust classification of a token
// contract address. Unknown is implicit: absence from both registries.
type VerificationStatus string

const (
	StatusVerified VerificationStatus = "verified"
	StatusUnlisted VerificationStatus = "unlisted"
	StatusUnknown  VerificationStatus = "unknown"
)

// VerifiedToken is a trust-registry record for a token confirmed against
// the external authoritative registry.
type VerifiedToken struct {
	Address    string `json:"address"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Decimals   uint8  `json:"decimals"`
	LogoURL    string `json:"logoURL,omitempty"`
	ExternalID string `json:"externalID,omitempty"`
	Standard   string `json:"standard,omitempty"`
	IsNative   bool   `json:"isNative,omitempty"`
}

// UnlistedToken records a token that failed verification, with the reason
// and when it was last checked.
type UnlistedToken struct {
	Address   string    `json:"address"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checkedAt"`
}

// TokenMetadata is the descriptive record persisted for any token the
// system has seen, verified or not.
type TokenMetadata struct {
	Address   string    `json:"address"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name,omitempty"`
	Decimals  uint8     `json:"decimals"`
	LogoURL   string    `json:"logoURL,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Verdict is the outcome of classifying one token address.
type Verdict struct {
	IsVerified bool `json:"isVerified"`
	IsUnlisted bool `json:"isUnlisted"`
}

// Status folds the two flags back into a VerificationStatus.
func (v Verdict) Status() VerificationStatus {
	switch {
	case v.IsVerified:
		return StatusVerified
	case v.IsUnlisted:
		return StatusUnlisted
	default:
		return StatusUnknown
	}
}

// AuthorityRecord is one entry returned by the external authoritative
// registry lookup, keyed by symbol.
type AuthorityRecord struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
