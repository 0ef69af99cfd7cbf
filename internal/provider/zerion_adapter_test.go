package provider

import (
	"context"
	"errors"
	"testing"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"

	"go.uber.org/zap"
)

type fakeZerionClient struct {
	positions []entity.ZerionPositionData
	err       error
}

func (f *fakeZerionClient) GetWalletPositions(context.Context, string, string) ([]entity.ZerionPositionData, error) {
	return f.positions, f.err
}

func zerionFixture(positions []entity.ZerionPositionData) *zerionAdapter {
	cfg := &config.Config{
		Portfolio: config.PortfolioConfig{MaxConcurrentNetworks: 2},
		Networks: []config.NetworkNode{
			{Identifier: "ethereum", ZerionChainID: "ethereum"},
			{Identifier: "tron"}, // no Zerion chain id
		},
	}
	a := NewZerionAdapter(&fakeZerionClient{positions: positions}, cfg, zap.NewNop())
	return a.(*zerionAdapter)
}

func zerionEntry(id, posType, groupID, protocol, module, symbol string, amount, value float64) entity.ZerionPositionData {
	v := value
	price := 0.0
	if amount > 0 {
		price = value / amount
	}
	return entity.ZerionPositionData{
		ID: id,
		Attributes: entity.ZerionPositionAttributes{
			PositionType: posType,
			GroupID:      groupID,
			Protocol:     protocol,
			Module:       module,
			Quantity:     entity.ZerionQuantity{Float: amount, Decimals: 18},
			Value:        &v,
			Price:        &price,
			Fungible: entity.ZerionFungibleInfo{
				Symbol: symbol,
				Implementations: []entity.ZerionImplementation{
					{ChainID: "ethereum", Address: "0x" + symbol, Decimals: 18},
				},
			},
		},
	}
}

func TestZerionMergesStakedAndRewardEntries(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "staked", "g1", "Lido", "staking", "stETH", 1, 100),
		zerionEntry("e2", "reward", "g1", "Lido", "staking", "LDO", 5, 10),
	})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one merged position, got %d", len(positions))
	}

	pos := positions[0]
	if pos.Kind != entity.PositionKindStaked {
		t.Errorf("expected staked kind, got %s", pos.Kind)
	}
	if pos.Details.StakedValueUSD != 100 || pos.Details.RewardsValueUSD != 10 {
		t.Errorf("expected staked=100 rewards=10, got %f/%f",
			pos.Details.StakedValueUSD, pos.Details.RewardsValueUSD)
	}
	if pos.Details.StakedCount+pos.Details.RewardsCount != len(pos.Tokens) {
		t.Error("staked+rewards counts must cover all tokens")
	}
	if pos.Protocol.Name != "Lido" {
		t.Errorf("expected protocol Lido, got %s", pos.Protocol.Name)
	}
}

func TestZerionMergesLendingGroup(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "deposit", "g1", "Aave", "lending", "DAI", 1000, 1000),
		zerionEntry("e2", "loan", "g1", "Aave", "lending", "USDT", 300, 300),
	})

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
	if pos.Details.NetValueUSD != 700 {
		t.Errorf("expected net=700, got %f", pos.Details.NetValueUSD)
	}
	for _, tok := range pos.Tokens {
		if tok.Role == entity.TokenRoleBorrowed && !tok.IsDebt {
			t.Error("loan entry must map to a debt token")
		}
	}
}

func TestZerionDepositUnderYieldModuleIsYield(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "deposit", "", "Yearn", "yield", "yvWETH", 2, 4000),
	})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	if positions[0].Kind != entity.PositionKindYield {
		t.Errorf("deposit under yield module must be yield, got %s", positions[0].Kind)
	}
}

func TestZerionUnmappedTypeBecomesOther(t *testing.T) {
	if kind := kindFromTypeAndModule("airdrop-claim", entity.ModuleOther); kind != entity.PositionKindOther {
		t.Errorf("unmapped type must be Other, got %s", kind)
	}
}

func TestZerionUnsupportedNetwork(t *testing.T) {
	adapter := zerionFixture(nil)

	_, err := adapter.FetchPositions(context.Background(), "0xwallet", "tron")
	if !errors.Is(err, entity.ErrUnsupportedNetwork) {
		t.Errorf("expected ErrUnsupportedNetwork, got %v", err)
	}
}

func TestZerionDropsRewardOnlyGroup(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "reward", "g9", "Convex", "farming", "CRV", 5, 25),
		zerionEntry("e2", "reward", "g9", "Convex", "farming", "CVX", 2, 10),
		zerionEntry("e3", "staked", "g1", "Lido", "staking", "stETH", 1, 100),
	})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("reward-only group must be dropped, got %d positions", len(positions))
	}
	if positions[0].Kind != entity.PositionKindStaked {
		t.Errorf("surviving position should be the staked one, got %s", positions[0].Kind)
	}
}

func TestZerionUngroupedEntryKeepsRoleFromKind(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "reward", "", "Curve", "farming", "CRV", 5, 25),
	})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("standalone reward entry must survive, got %d positions", len(positions))
	}
	if positions[0].Kind != entity.PositionKindReward {
		t.Errorf("expected reward kind, got %s", positions[0].Kind)
	}
	if len(positions[0].Tokens) != 1 || positions[0].Tokens[0].Role != entity.TokenRoleReward {
		t.Errorf("standalone reward entry must carry the reward token role, got %+v", positions[0].Tokens)
	}
}

func TestZerionUngroupedEntriesStayDistinct(t *testing.T) {
	adapter := zerionFixture([]entity.ZerionPositionData{
		zerionEntry("e1", "deposit", "", "Compound", "lending", "cDAI", 10, 500),
		zerionEntry("e2", "staked", "", "Lido", "staking", "stETH", 1, 100),
	})

	positions, err := adapter.FetchPositions(context.Background(), "0xwallet", "ethereum")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(positions) != 2 {
		t.Errorf("entries without a group id must not merge, got %d positions", len(positions))
	}
}
