package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"defi_portfolio/internal/cache"
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/pkg/utils"
	"defi_portfolio/internal/port"
	"defi_portfolio/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// walletBalanceServiceImpl serves the plain wallet balance path: the
// metadata registry decides which contracts to query, balances come from
// batched RPC calls, verification and pricing reuse the same machinery as
// the DeFi path. Results are cached briefly per (network, wallet).
type walletBalanceServiceImpl struct {
	clients      port.BlockchainClientProvider
	metadata     repository.TokenMetadataRepository
	verification port.VerificationService
	pricing      port.PricingClient
	store        cache.Store
	cfg          *config.Config

	rpcLimiter *rate.Limiter
	balanceTTL time.Duration
	maxPerCall int
	logger     *zap.Logger
}

// NewWalletBalanceService creates the wallet balance service.
func NewWalletBalanceService(
	clients port.BlockchainClientProvider,
	metadata repository.TokenMetadataRepository,
	verification port.VerificationService,
	pricing port.PricingClient,
	store cache.Store,
	cfg *config.Config,
	logger *zap.Logger,
) port.WalletBalanceService {
	return &walletBalanceServiceImpl{
		clients:      clients,
		metadata:     metadata,
		verification: verification,
		pricing:      pricing,
		store:        store,
		cfg:          cfg,
		rpcLimiter:   rate.NewLimiter(rate.Limit(cfg.RpcClient.RateLimit), cfg.RpcClient.BurstLimit),
		balanceTTL:   time.Duration(cfg.Cache.BalanceTTLSeconds) * time.Second,
		maxPerCall:   cfg.RpcClient.MaxAddressesPerCall,
		logger:       logger.Named("WalletBalanceService"),
	}
}

func balanceCacheKey(network entity.Network, wallet string) string {
	return "balances:" + network.String() + ":" + entity.CanonicalAddress(wallet)
}

func (s *walletBalanceServiceImpl) GetBalances(ctx context.Context, wallet string, network entity.Network) (*entity.NetworkBalances, error) {
	node, ok := s.cfg.NetworkByID(network.String())
	if !ok {
		return nil, fmt.Errorf("network %s: %w", network, entity.ErrUnsupportedNetwork)
	}

	cacheKey := balanceCacheKey(network, wallet)
	if raw, found := s.store.Get(ctx, cacheKey); found {
		var cached entity.NetworkBalances
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	client, err := s.clients.GetClient(network)
	if err != nil {
		return nil, err
	}

	// The metadata registry decides which contracts are worth querying.
	// A registry outage degrades to native-only rather than failing.
	tokenSet, err := s.metadata.Lookup(ctx, network)
	if err != nil {
		s.logger.Warn("Metadata registry unavailable, querying native balance only",
			zap.String("network", network.String()), zap.Error(err))
		tokenSet = map[string]entity.TokenMetadata{}
	}

	results, err := s.fetchBalances(ctx, client, wallet, node, tokenSet)
	if err != nil {
		return nil, err
	}

	balances := s.buildBalances(ctx, wallet, network, node, results)

	if raw, err := json.Marshal(balances); err == nil {
		s.store.Set(ctx, cacheKey, raw, s.balanceTTL)
	}
	return balances, nil
}

func (s *walletBalanceServiceImpl) fetchBalances(ctx context.Context, client port.BlockchainClient, wallet string, node config.NetworkNode, tokenSet map[string]entity.TokenMetadata) ([]entity.BalanceResultItem, error) {
	requests := []entity.BalanceRequestItem{{
		ID:            "native",
		Type:          entity.NativeBalanceRequest,
		WalletAddress: wallet,
		TokenSymbol:   node.NativeSymbol,
		TokenDecimals: node.NativeDecimals,
	}}
	for addr, meta := range tokenSet {
		requests = append(requests, entity.BalanceRequestItem{
			ID:            addr,
			Type:          entity.TokenBalanceRequest,
			WalletAddress: wallet,
			TokenAddress:  addr,
			TokenSymbol:   meta.Symbol,
			TokenDecimals: meta.Decimals,
		})
	}

	var results []entity.BalanceResultItem
	for start := 0; start < len(requests); start += s.maxPerCall {
		end := start + s.maxPerCall
		if end > len(requests) {
			end = len(requests)
		}
		if err := s.rpcLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		batch, err := client.GetBalances(ctx, requests[start:end])
		if err != nil {
			return nil, fmt.Errorf("balance batch failed for wallet %s: %w", wallet, err)
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (s *walletBalanceServiceImpl) buildBalances(ctx context.Context, wallet string, network entity.Network, node config.NetworkNode, results []entity.BalanceResultItem) *entity.NetworkBalances {
	balances := &entity.NetworkBalances{
		WalletAddress: wallet,
		Network:       network,
	}

	var held []entity.BalanceResultItem
	var refs []entity.TokenRef
	hasNative := false
	for _, res := range results {
		if res.Error != nil {
			s.logger.Warn("Balance item failed",
				zap.String("token", res.TokenSymbol),
				zap.String("wallet", wallet),
				zap.Error(res.Error))
			continue
		}
		if !res.IsNative && (res.Balance == nil || res.Balance.Sign() == 0) {
			continue
		}
		held = append(held, res)
		if res.IsNative {
			hasNative = true
		} else {
			refs = append(refs, entity.TokenRef{Address: res.TokenAddress, Symbol: res.TokenSymbol})
		}
	}

	verdicts, err := s.verification.ClassifyAndVerify(ctx, network, refs)
	if err != nil {
		s.logger.Warn("Balance classification degraded",
			zap.String("network", network.String()), zap.Error(err))
		verdicts = map[string]entity.Verdict{}
	}

	fetchSet := make([]string, 0, len(refs)+1)
	for _, ref := range refs {
		if verdicts[entity.CanonicalAddress(ref.Address)].IsVerified {
			fetchSet = append(fetchSet, entity.CanonicalAddress(ref.Address))
		}
	}
	if hasNative && node.WrappedNativeAddress != "" {
		fetchSet = append(fetchSet, node.WrappedNativeAddress)
	}

	prices := map[string]float64{}
	if len(fetchSet) > 0 {
		fetched, _, err := s.pricing.FetchPrices(ctx, network, utils.Dedup(fetchSet))
		if err != nil {
			s.logger.Warn("Balance pricing degraded",
				zap.String("network", network.String()), zap.Error(err))
		} else {
			for addr, price := range fetched {
				prices[entity.CanonicalAddress(addr)] = price
			}
		}
	}

	for _, res := range held {
		detail := entity.BalanceDetail{
			TokenAddress:     res.TokenAddress,
			TokenSymbol:      res.TokenSymbol,
			Decimals:         res.Decimals,
			FormattedBalance: res.FormattedBalance,
			IsNative:         res.IsNative,
		}

		var price float64
		var priced bool
		if res.IsNative {
			detail.IsVerified = true
			price, priced = prices[node.WrappedNativeAddress]
		} else {
			verdict := verdicts[entity.CanonicalAddress(res.TokenAddress)]
			detail.IsVerified = verdict.IsVerified
			detail.IsUnlisted = verdict.IsUnlisted
			if verdict.IsVerified {
				price, priced = prices[entity.CanonicalAddress(res.TokenAddress)]
			}
		}
		if priced {
			value := utils.ToFloat(res.Balance, res.Decimals) * price
			detail.PriceUSD = &price
			detail.ValueUSD = &value
			detail.PriceSource = entity.PriceSourceAuthoritative
			detail.IsNativeProxyPrice = res.IsNative
			balances.TotalValueUSD += value
		}
		if !detail.IsVerified {
			balances.HasUnverifiedTokens = true
		}
		balances.Tokens = append(balances.Tokens, detail)
	}
	return balances
}
