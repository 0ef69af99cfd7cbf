package service

import (
	"context"
	"errors"
	"testing"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"

	"go.uber.org/zap"
)

type fakePricing struct {
	prices   map[string]float64
	failErr  error
	requests [][]string
}

func (f *fakePricing) FetchPrices(_ context.Context, network entity.Network, addresses []string) (map[string]float64, []entity.PriceFailure, error) {
	f.requests = append(f.requests, addresses)
	if f.failErr != nil {
		return nil, nil, f.failErr
	}
	out := make(map[string]float64)
	var failures []entity.PriceFailure
	for _, addr := range addresses {
		if price, ok := f.prices[addr]; ok {
			out[addr] = price
		} else {
			failures = append(failures, entity.PriceFailure{Network: network, Address: addr, Reason: "no market data"})
		}
	}
	return out, failures, nil
}

type fixedVerdicts map[string]entity.Verdict

func (f fixedVerdicts) ClassifyAndVerify(_ context.Context, _ entity.Network, tokens []entity.TokenRef) (map[string]entity.Verdict, error) {
	out := make(map[string]entity.Verdict)
	for _, tok := range tokens {
		out[entity.CanonicalAddress(tok.Address)] = f[entity.CanonicalAddress(tok.Address)]
	}
	return out, nil
}

func (f fixedVerdicts) Recheck(_ context.Context, _ entity.Network, token entity.TokenRef) (entity.Verdict, error) {
	return f[entity.CanonicalAddress(token.Address)], nil
}

func enrichmentFixture(pricing *fakePricing, verdicts fixedVerdicts) *priceEnrichmentServiceImpl {
	cfg := &config.Config{
		Pricing: config.PricingConfig{MaxTokensPerBatchRequest: 100, RateLimit: 100, BurstLimit: 100},
		Networks: []config.NetworkNode{{
			Identifier:           "ethereum",
			NativeSymbol:         "ETH",
			NativeDecimals:       18,
			WrappedNativeAddress: "0xweth",
		}},
	}
	svc := NewPriceEnrichmentService(pricing, verdicts, cfg, zap.NewNop())
	return svc.(*priceEnrichmentServiceImpl)
}

func ptr(v float64) *float64 { return &v }

func TestEnrichOnlyVerifiedGetAuthoritativePrices(t *testing.T) {
	pricing := &fakePricing{prices: map[string]float64{"0xusdc": 1.0}}
	verdicts := fixedVerdicts{
		"0xusdc": {IsVerified: true},
		"0xscam": {IsUnlisted: true},
	}
	svc := enrichmentFixture(pricing, verdicts)

	positions := []entity.Position{{
		Kind: entity.PositionKindOther,
		Tokens: []entity.PositionToken{
			{Address: "0xUSDC", Symbol: "USDC", Balance: 100, Role: entity.TokenRoleGeneric},
			{Address: "0xSCAM", Symbol: "FREE", Balance: 5000, Role: entity.TokenRoleGeneric,
				PriceUSD: ptr(0.01), ValueUSD: ptr(50), PriceSource: entity.PriceSourceProviderFallback},
		},
	}}

	enriched, _ := svc.EnrichWithPrices(context.Background(), "ethereum", positions)

	usdc := enriched[0].Tokens[0]
	if usdc.PriceSource != entity.PriceSourceAuthoritative {
		t.Errorf("expected authoritative price source, got %q", usdc.PriceSource)
	}
	if usdc.ValueUSD == nil || *usdc.ValueUSD != 100 {
		t.Errorf("expected value 100, got %v", usdc.ValueUSD)
	}

	scam := enriched[0].Tokens[1]
	if scam.PriceSource == entity.PriceSourceAuthoritative {
		t.Error("unverified token must never carry an authoritative price")
	}
	if scam.ValueUSD == nil || *scam.ValueUSD != 50 {
		t.Errorf("expected provider fallback value retained, got %v", scam.ValueUSD)
	}
	if !enriched[0].HasUnverifiedTokens || !enriched[0].IsDisconnectedFromGlobalPricing {
		t.Error("expected unverified-token flags set on the position")
	}
	if enriched[0].TotalValueUSD != 150 {
		t.Errorf("expected total 150, got %f", enriched[0].TotalValueUSD)
	}

	// The unverified address must not appear in any price request.
	for _, batch := range pricing.requests {
		for _, addr := range batch {
			if addr == "0xscam" {
				t.Error("unverified token address was sent to the pricing source")
			}
		}
	}
}

func TestEnrichLendingInvariant(t *testing.T) {
	pricing := &fakePricing{prices: map[string]float64{"0xdai": 1.0, "0xusdt": 1.0}}
	verdicts := fixedVerdicts{
		"0xdai":  {IsVerified: true},
		"0xusdt": {IsVerified: true},
	}
	svc := enrichmentFixture(pricing, verdicts)

	positions := []entity.Position{{
		Kind: entity.PositionKindLending,
		Tokens: []entity.PositionToken{
			{Address: "0xDAI", Symbol: "DAI", Balance: 1000, Role: entity.TokenRoleSupplied},
			{Address: "0xUSDT", Symbol: "USDT", Balance: 300, Role: entity.TokenRoleBorrowed, IsDebt: true},
		},
	}}

	enriched, _ := svc.EnrichWithPrices(context.Background(), "ethereum", positions)
	d := enriched[0].Details

	if d.SuppliedValueUSD != 1000 || d.BorrowedValueUSD != 300 {
		t.Errorf("expected supplied=1000 borrowed=300, got %f/%f", d.SuppliedValueUSD, d.BorrowedValueUSD)
	}
	if d.NetValueUSD != 700 {
		t.Errorf("expected net=700, got %f", d.NetValueUSD)
	}
	if enriched[0].TotalValueUSD != 700 {
		t.Errorf("lending total must subtract debt: got %f", enriched[0].TotalValueUSD)
	}
	for _, tok := range enriched[0].Tokens {
		if tok.Role == entity.TokenRoleBorrowed && !tok.IsDebt {
			t.Error("borrowed token lost its IsDebt flag")
		}
	}
}

func TestEnrichFarmingInvariant(t *testing.T) {
	pricing := &fakePricing{prices: map[string]float64{
		"0xa": 60, "0xb": 40, "0xr1": 5, "0xr2": 2, "0xr3": 3,
	}}
	verdicts := fixedVerdicts{
		"0xa": {IsVerified: true}, "0xb": {IsVerified: true},
		"0xr1": {IsVerified: true}, "0xr2": {IsVerified: true}, "0xr3": {IsVerified: true},
	}
	svc := enrichmentFixture(pricing, verdicts)

	positions := []entity.Position{{
		Kind: entity.PositionKindFarming,
		Tokens: []entity.PositionToken{
			{Address: "0xa", Symbol: "AA", Balance: 1, Role: entity.TokenRoleSupplied},
			{Address: "0xb", Symbol: "BB", Balance: 1, Role: entity.TokenRoleSupplied},
			{Address: "0xr1", Symbol: "R1", Balance: 1, Role: entity.TokenRoleReward},
			{Address: "0xr2", Symbol: "R2", Balance: 1, Role: entity.TokenRoleReward},
			{Address: "0xr3", Symbol: "R3", Balance: 1, Role: entity.TokenRoleReward},
		},
	}}

	enriched, _ := svc.EnrichWithPrices(context.Background(), "ethereum", positions)
	pos := enriched[0]
	d := pos.Details

	if d.StakedValueUSD != 100 || d.RewardsValueUSD != 10 {
		t.Errorf("expected staked=100 rewards=10, got %f/%f", d.StakedValueUSD, d.RewardsValueUSD)
	}
	if pos.TotalValueUSD != 110 {
		t.Errorf("expected total=110, got %f", pos.TotalValueUSD)
	}
	if d.StakedCount != 2 || d.RewardsCount != 3 {
		t.Errorf("expected counts 2/3, got %d/%d", d.StakedCount, d.RewardsCount)
	}
	if d.StakedCount+d.RewardsCount != len(pos.Tokens) {
		t.Error("staked+rewards counts must cover all tokens")
	}
}

func TestEnrichBatchFailureDegradesNotAborts(t *testing.T) {
	pricing := &fakePricing{failErr: errors.New("upstream 429")}
	verdicts := fixedVerdicts{"0xusdc": {IsVerified: true}}
	svc := enrichmentFixture(pricing, verdicts)

	positions := []entity.Position{{
		Kind: entity.PositionKindOther,
		Tokens: []entity.PositionToken{
			{Address: "0xUSDC", Symbol: "USDC", Balance: 100, Role: entity.TokenRoleGeneric},
		},
	}}

	enriched, failures := svc.EnrichWithPrices(context.Background(), "ethereum", positions)
	if len(enriched) != 1 {
		t.Fatal("enrichment must not drop positions on price failure")
	}
	tok := enriched[0].Tokens[0]
	if tok.PriceUSD != nil {
		t.Errorf("expected no price on failure, got %v (zero prices are forbidden)", *tok.PriceUSD)
	}
	if len(failures) == 0 {
		t.Error("expected structured per-token failures")
	}
}

func TestEnrichNativeProxyPrice(t *testing.T) {
	pricing := &fakePricing{prices: map[string]float64{"0xweth": 2000}}
	svc := enrichmentFixture(pricing, fixedVerdicts{})

	positions := []entity.Position{{
		Kind: entity.PositionKindStaked,
		Tokens: []entity.PositionToken{
			{Address: entity.ZeroAddress, Symbol: "ETH", Balance: 2, Role: entity.TokenRoleSupplied, IsNative: true},
		},
	}}

	enriched, _ := svc.EnrichWithPrices(context.Background(), "ethereum", positions)
	tok := enriched[0].Tokens[0]

	if !tok.IsNativeProxyPrice {
		t.Error("expected native token flagged as proxy-priced")
	}
	if tok.ValueUSD == nil || *tok.ValueUSD != 4000 {
		t.Errorf("expected value 4000 via wrapped proxy, got %v", tok.ValueUSD)
	}
	if tok.PriceSource != entity.PriceSourceAuthoritative {
		t.Errorf("expected authoritative source for proxy price, got %q", tok.PriceSource)
	}
	if !tok.IsVerified {
		t.Error("native coin must be treated as verified")
	}
}
