package utils

import (
	"math/big"
	"strings"
)

// FormatBigInt converts a raw integer token amount to a human-readable
// decimal string for the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345".
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(amountFloat, divisor)

	formatted := value.Text('f', int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if formatted == "" || formatted == "-" {
		return "0"
	}
	if strings.HasPrefix(formatted, ".") {
		formatted = "0" + formatted
	}
	return formatted
}

// ToFloat converts a raw integer token amount to its float64 human value.
// Precision loss is acceptable here: the result feeds USD valuation, not
// balance accounting.
func ToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(amountFloat, divisor).Float64()
	return f
}
