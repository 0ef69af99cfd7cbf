package provider

import (
	"strings"

	"defi_portfolio/internal/entity"
)

// unknownProtocol is the fallback when upstream omits protocol metadata
// and no token heuristic matches.
var unknownProtocol = entity.Protocol{ID: "unknown", Name: "Unknown"}

var exactSymbolHints = map[string]entity.Protocol{
	"steth":  {ID: "lido", Name: "Lido"},
	"wsteth": {ID: "lido", Name: "Lido"},
	"reth":   {ID: "rocket-pool", Name: "Rocket Pool"},
	"xsushi": {ID: "sushiswap", Name: "SushiSwap"},
	"cake":   {ID: "pancakeswap", Name: "PancakeSwap"},
	"crv":    {ID: "curve", Name: "Curve"},
	"cvx":    {ID: "convex", Name: "Convex"},
}

var prefixSymbolHints = []struct {
	prefix   string
	protocol entity.Protocol
}{
	{"am", entity.Protocol{ID: "aave", Name: "Aave"}},
	{"yv", entity.Protocol{ID: "yearn", Name: "Yearn"}},
	{"stk", entity.Protocol{ID: "aave", Name: "Aave"}},
	{"a", entity.Protocol{ID: "aave", Name: "Aave"}},
	{"c", entity.Protocol{ID: "compound", Name: "Compound"}},
}

// inferProtocol guesses the owning protocol from token symbols when the
// provider omitted protocol metadata. Receipt-token naming conventions
// (aUSDC, cDAI, yvWETH, stETH) identify the big lenders and stakers;
// everything else falls back to Unknown.
func inferProtocol(tokens []entity.PositionToken) entity.Protocol {
	for _, tok := range tokens {
		symbol := strings.TrimSpace(tok.Symbol)
		if symbol == "" {
			continue
		}
		if p, ok := exactSymbolHints[strings.ToLower(symbol)]; ok {
			return p
		}
		for _, hint := range prefixSymbolHints {
			if len(symbol) <= len(hint.prefix) {
				continue
			}
			if !strings.HasPrefix(strings.ToLower(symbol), hint.prefix) {
				continue
			}
			// Single-letter prefixes only count when the remainder starts
			// uppercase (aUSDC, cDAI), to avoid matching ordinary symbols.
			rest := symbol[len(hint.prefix):]
			if len(hint.prefix) == 1 && (rest[0] < 'A' || rest[0] > 'Z') {
				continue
			}
			return hint.protocol
		}
	}
	return unknownProtocol
}
