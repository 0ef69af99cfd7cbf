package provider

import (
	"context"
	"errors"
	"testing"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"

	"go.uber.org/zap"
)

type fakeDebankClient struct {
	protocols []entity.DebankProtocol
	err       error
}

func (f *fakeDebankClient) GetComplexProtocolList(context.Context, string, string) ([]entity.DebankProtocol, error) {
	return f.protocols, f.err
}

func debankFixture(protocols []entity.DebankProtocol) *debankAdapter {
	cfg := &config.Config{
		Portfolio: config.PortfolioConfig{MaxConcurrentNetworks: 2},
		Networks: []config.NetworkNode{
			{Identifier: "ethereum", DebankChainID: "eth"},
			{Identifier: "solana"}, // no DeBank chain id
		},
	}
	a := NewDebankAdapter(&fakeDebankClient{protocols: protocols}, cfg, zap.NewNop())
	return a.(*debankAdapter)
}

func debankToken(symbol string, amount, price float64) entity.DebankToken {
	return entity.DebankToken{
		ID:       "0x" + symbol,
		Chain:    "eth",
		Symbol:   symbol,
		Decimals: 18,
		Amount:   amount,
		Price:    price,
	}
}

func TestFetchPositionsAggregatesFarmingGroup(t *testing.T) {
	adapter := debankFixture([]entity.DebankProtocol{{
		ID:   "convex",
		Name: "Convex",
		PortfolioItems: []entity.DebankPortfolioItem{
			{
				Name: "Farming",
				Pool: &entity.DebankPool{ID: "pool-1"},
				Detail: entity.DebankDetail{
					SupplyTokens: []entity.DebankToken{debankToken("AA", 1, 60)},
					RewardTokens: []entity.DebankToken{debankToken("R1", 1, 5), debankToken("R2", 1, 2)},
				},
			},
			{
				Name: "Farming",
				Pool: &entity.DebankPool{ID: "pool-1"},
				Detail: entity.DebankDetail{
					SupplyTokens: []entity.DebankToken{debankToken("BB", 1, 40)},
					RewardTokens: []entity.DebankToken{debankToken("R3", 1, 3)},
				},
			},
		},
	}})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one aggregated position, got %d", len(positions))
	}

	pos := positions[0]
	if pos.Kind != entity.PositionKindFarming {
		t.Errorf("expected farming kind, got %s", pos.Kind)
	}
	if pos.Details.StakedValueUSD != 100 || pos.Details.RewardsValueUSD != 10 {
		t.Errorf("expected staked=100 rewards=10, got %f/%f",
			pos.Details.StakedValueUSD, pos.Details.RewardsValueUSD)
	}
	if pos.Details.StakedCount != 2 || pos.Details.RewardsCount != 3 {
		t.Errorf("expected counts 2/3, got %d/%d", pos.Details.StakedCount, pos.Details.RewardsCount)
	}
	if pos.Details.StakedCount+pos.Details.RewardsCount != len(pos.Tokens) {
		t.Error("staked+rewards counts must cover all tokens")
	}
	if pos.Protocol.Name != "Convex" {
		t.Errorf("expected protocol name Convex, got %s", pos.Protocol.Name)
	}
}

func TestFetchPositionsAggregatesLendingGroup(t *testing.T) {
	hr := 1.8
	adapter := debankFixture([]entity.DebankProtocol{{
		ID:   "aave",
		Name: "Aave",
		PortfolioItems: []entity.DebankPortfolioItem{{
			Name: "Lending",
			Pool: &entity.DebankPool{ID: "market-1"},
			Detail: entity.DebankDetail{
				SupplyTokens: []entity.DebankToken{debankToken("DAI", 1000, 1)},
				BorrowTokens: []entity.DebankToken{debankToken("USDT", 300, 1)},
				HealthRate:   &hr,
			},
		}},
	}})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one lending position, got %d", len(positions))
	}

	pos := positions[0]
	if pos.Kind != entity.PositionKindLending {
		t.Errorf("expected lending kind, got %s", pos.Kind)
	}
	if pos.Details.SuppliedValueUSD != 1000 || pos.Details.BorrowedValueUSD != 300 {
		t.Errorf("expected supplied=1000 borrowed=300, got %f/%f",
			pos.Details.SuppliedValueUSD, pos.Details.BorrowedValueUSD)
	}
	if pos.Details.NetValueUSD != 700 {
		t.Errorf("expected net=700, got %f", pos.Details.NetValueUSD)
	}
	for _, tok := range pos.Tokens {
		if tok.Role == entity.TokenRoleBorrowed && !tok.IsDebt {
			t.Error("borrowed token must carry IsDebt")
		}
	}
	if pos.Account == nil || pos.Account.HealthFactor == nil || *pos.Account.HealthFactor != 1.8 {
		t.Error("expected health factor propagated from provider")
	}
}

func TestFetchPositionsDropsGroupWithoutStaked(t *testing.T) {
	adapter := debankFixture([]entity.DebankProtocol{{
		ID:   "orphan",
		Name: "Orphan",
		PortfolioItems: []entity.DebankPortfolioItem{{
			Name: "Farming",
			Pool: &entity.DebankPool{ID: "pool-x"},
			Detail: entity.DebankDetail{
				RewardTokens: []entity.DebankToken{debankToken("R1", 1, 5)},
			},
		}},
	}})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("expected rewards-only group dropped, got %d positions", len(positions))
	}
}

func TestFetchPositionsUnsupportedNetwork(t *testing.T) {
	adapter := debankFixture(nil)

	_, err := adapter.FetchPositions(context.Background(), "0xwallet", "solana")
	if !errors.Is(err, entity.ErrUnsupportedNetwork) {
		t.Errorf("expected ErrUnsupportedNetwork, got %v", err)
	}

	if adapter.Supports("solana") {
		t.Error("adapter must not claim support for a network without a chain id")
	}
	if !adapter.Supports("ethereum") {
		t.Error("adapter must support a configured network")
	}
}

func TestFetchPositionsInfersProtocolFromTokens(t *testing.T) {
	adapter := debankFixture([]entity.DebankProtocol{{
		ID: "anon",
		PortfolioItems: []entity.DebankPortfolioItem{{
			Name: "Staked",
			Pool: &entity.DebankPool{ID: "pool-a"},
			Detail: entity.DebankDetail{
				SupplyTokens: []entity.DebankToken{debankToken("aUSDC", 10, 1)},
			},
		}},
	}})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	if positions[0].Protocol.Name != "Aave" {
		t.Errorf("expected protocol inferred as Aave from aUSDC, got %q", positions[0].Protocol.Name)
	}
}

func TestInferProtocolDefaultsToUnknown(t *testing.T) {
	p := inferProtocol([]entity.PositionToken{{Symbol: "WBTC"}, {Symbol: "LINK"}})
	if p.Name != "Unknown" {
		t.Errorf("expected Unknown fallback, got %q", p.Name)
	}
}
