package service

import (
	"context"
	"math/big"
	"testing"

	"defi_portfolio/internal/cache"
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/pkg/utils"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
)

type fakeChainClient struct {
	network entity.Network
	// balances keyed by token address, "" for the native coin
	balances map[string]*big.Int
	calls    int
}

func (f *fakeChainClient) Network() entity.Network { return f.network }

func (f *fakeChainClient) GetBalances(_ context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	f.calls++
	results := make([]entity.BalanceResultItem, 0, len(requests))
	for _, req := range requests {
		key := ""
		if req.Type == entity.TokenBalanceRequest {
			key = req.TokenAddress
		}
		balance := f.balances[key]
		if balance == nil {
			balance = big.NewInt(0)
		}
		results = append(results, entity.BalanceResultItem{
			RequestID:        req.ID,
			WalletAddress:    req.WalletAddress,
			TokenAddress:     req.TokenAddress,
			TokenSymbol:      req.TokenSymbol,
			Decimals:         req.TokenDecimals,
			IsNative:         req.Type == entity.NativeBalanceRequest,
			Balance:          balance,
			FormattedBalance: utils.FormatBigInt(balance, req.TokenDecimals),
		})
	}
	return results, nil
}

type fakeChainProvider struct {
	client *fakeChainClient
}

func (f *fakeChainProvider) GetClient(entity.Network) (port.BlockchainClient, error) {
	return f.client, nil
}

type fixedMetadataRepo map[string]entity.TokenMetadata

func (f fixedMetadataRepo) Lookup(context.Context, entity.Network) (map[string]entity.TokenMetadata, error) {
	return f, nil
}

func (f fixedMetadataRepo) Invalidate(context.Context, entity.Network) {}

func walletFixture(chain *fakeChainClient, metadata fixedMetadataRepo, pricing *fakePricing, verdicts fixedVerdicts) port.WalletBalanceService {
	cfg := &config.Config{
		Cache:     config.CacheConfig{BalanceTTLSeconds: 30},
		RpcClient: config.RpcClientConfig{RateLimit: 100, BurstLimit: 100, MaxAddressesPerCall: 10},
		Networks: []config.NetworkNode{{
			Identifier:           "ethereum",
			NativeSymbol:         "ETH",
			NativeDecimals:       18,
			WrappedNativeAddress: "0xweth",
		}},
	}
	store := cache.NewStore(nil, cache.Options{}, zap.NewNop())
	return NewWalletBalanceService(&fakeChainProvider{client: chain}, metadata, verdicts, pricing, store, cfg, zap.NewNop())
}

func TestWalletBalancesNativeProxyPriceFlagged(t *testing.T) {
	twoEth, _ := new(big.Int).SetString("2000000000000000000", 10)
	oneUsdc := big.NewInt(1_000_000)
	chain := &fakeChainClient{
		network: "ethereum",
		balances: map[string]*big.Int{
			"":       twoEth,
			"0xusdc": oneUsdc,
		},
	}
	metadata := fixedMetadataRepo{
		"0xusdc": {Address: "0xusdc", Symbol: "USDC", Decimals: 6},
	}
	pricing := &fakePricing{prices: map[string]float64{"0xweth": 2000, "0xusdc": 1}}
	verdicts := fixedVerdicts{"0xusdc": {IsVerified: true}}

	svc := walletFixture(chain, metadata, pricing, verdicts)
	balances, err := svc.GetBalances(context.Background(), "0xWallet", "ethereum")
	if err != nil {
		t.Fatalf("get balances failed: %v", err)
	}

	var native, usdc *entity.BalanceDetail
	for i := range balances.Tokens {
		if balances.Tokens[i].IsNative {
			native = &balances.Tokens[i]
		} else if balances.Tokens[i].TokenSymbol == "USDC" {
			usdc = &balances.Tokens[i]
		}
	}
	if native == nil || usdc == nil {
		t.Fatalf("expected native and USDC balances, got %+v", balances.Tokens)
	}

	if !native.IsVerified {
		t.Error("native coin must be treated as verified")
	}
	if native.PriceSource != entity.PriceSourceAuthoritative {
		t.Errorf("native proxy price must be authoritative, got %q", native.PriceSource)
	}
	if !native.IsNativeProxyPrice {
		t.Error("native balance priced via the wrapped proxy must carry the proxy flag")
	}
	if native.ValueUSD == nil || *native.ValueUSD != 4000 {
		t.Errorf("expected native value 4000, got %v", native.ValueUSD)
	}

	if usdc.IsNativeProxyPrice {
		t.Error("an ERC-20 price must not carry the proxy flag")
	}
	if usdc.ValueUSD == nil || *usdc.ValueUSD != 1 {
		t.Errorf("expected USDC value 1, got %v", usdc.ValueUSD)
	}
	if balances.TotalValueUSD != 4001 {
		t.Errorf("expected total 4001, got %f", balances.TotalValueUSD)
	}
}

func TestWalletBalancesServedFromCacheOnRepeat(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	chain := &fakeChainClient{
		network:  "ethereum",
		balances: map[string]*big.Int{"": oneEth},
	}
	pricing := &fakePricing{prices: map[string]float64{"0xweth": 2000}}

	svc := walletFixture(chain, fixedMetadataRepo{}, pricing, fixedVerdicts{})
	if _, err := svc.GetBalances(context.Background(), "0xWallet", "ethereum"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := svc.GetBalances(context.Background(), "0xWallet", "ethereum"); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if chain.calls != 1 {
		t.Errorf("expected one RPC batch, repeat call should hit the cache, got %d", chain.calls)
	}
}
