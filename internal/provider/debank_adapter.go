package provider

import (
	"context"
	"fmt"
	"sync"

	"defi_portfolio/internal/client"
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const debankProviderName = "debank"

// debankAdapter maps the DeBank-style complex-protocol payload onto
// canonical positions. Raw portfolio items sharing a pool id are merged
// into one logical position.
type debankAdapter struct {
	client         client.DebankClient
	cfg            *config.Config
	maxConcurrency int
	logger         *zap.Logger
}

// NewDebankAdapter creates the DeBank position provider.
func NewDebankAdapter(cl client.DebankClient, cfg *config.Config, logger *zap.Logger) port.PositionProvider {
	maxConcurrency := cfg.Portfolio.MaxConcurrentNetworks
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &debankAdapter{
		client:         cl,
		cfg:            cfg,
		maxConcurrency: maxConcurrency,
		logger:         logger.Named("DebankAdapter"),
	}
}

func (a *debankAdapter) Name() string {
	return debankProviderName
}

func (a *debankAdapter) Supports(network entity.Network) bool {
	node, ok := a.cfg.NetworkByID(network.String())
	return ok && node.DebankChainID != ""
}

func (a *debankAdapter) FetchPositions(ctx context.Context, wallet string, network entity.Network) ([]entity.Position, error) {
	node, ok := a.cfg.NetworkByID(network.String())
	if !ok || node.DebankChainID == "" {
		return nil, fmt.Errorf("provider %s does not support network %s: %w", debankProviderName, network, entity.ErrUnsupportedNetwork)
	}

	protocols, err := a.client.GetComplexProtocolList(ctx, wallet, node.DebankChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions from %s for %s on %s: %w", debankProviderName, wallet, network, err)
	}

	var positions []entity.Position
	for _, proto := range protocols {
		positions = append(positions, a.buildProtocolPositions(network, proto)...)
	}
	a.logger.Debug("Mapped provider payload",
		zap.String("wallet", wallet),
		zap.String("network", network.String()),
		zap.Int("protocols", len(protocols)),
		zap.Int("positions", len(positions)))
	return positions, nil
}

func (a *debankAdapter) FetchPositionsMultiNetwork(ctx context.Context, wallet string, networks []entity.Network) (map[entity.Network][]entity.Position, error) {
	results := make(map[entity.Network][]entity.Position, len(networks))
	var mu sync.Mutex
	var failed int

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)

	for _, network := range networks {
		network := network
		g.Go(func() error {
			positions, err := a.FetchPositions(gCtx, wallet, network)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				a.logger.Warn("Network fetch degraded",
					zap.String("wallet", wallet),
					zap.String("network", network.String()),
					zap.Error(err))
				return nil
			}
			results[network] = positions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if failed == len(networks) && len(networks) > 0 {
		return results, fmt.Errorf("all %d network fetches failed for wallet %s via %s", len(networks), wallet, debankProviderName)
	}
	return results, nil
}

// buildProtocolPositions groups one protocol's raw items by pool id and
// aggregates each group into a canonical position.
func (a *debankAdapter) buildProtocolPositions(network entity.Network, proto entity.DebankProtocol) []entity.Position {
	groupOrder := make([]string, 0, len(proto.PortfolioItems))
	groups := make(map[string][]entity.DebankPortfolioItem)
	for i, item := range proto.PortfolioItems {
		key := fmt.Sprintf("item-%d", i)
		if item.Pool != nil && item.Pool.ID != "" {
			key = item.Pool.ID
		}
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], item)
	}

	var positions []entity.Position
	for _, key := range groupOrder {
		if pos, ok := a.aggregateGroup(network, proto, key, groups[key]); ok {
			positions = append(positions, pos)
		}
	}
	return positions
}

func (a *debankAdapter) aggregateGroup(network entity.Network, proto entity.DebankProtocol, poolID string, items []entity.DebankPortfolioItem) (entity.Position, bool) {
	module := moduleFromHint(items[0].Name)

	var account *entity.AccountData
	for _, item := range items {
		if item.Detail.HealthRate == nil && item.Detail.DailyNetRate == nil {
			continue
		}
		if account == nil {
			account = &entity.AccountData{}
		}
		if item.Detail.HealthRate != nil {
			account.HealthFactor = item.Detail.HealthRate
		}
		if item.Detail.DailyNetRate != nil {
			apr := *item.Detail.DailyNetRate * 365
			account.NetAPR = &apr
		}
	}

	var tokens []entity.PositionToken
	var details entity.PositionDetails
	var kind entity.PositionKind

	if module == entity.ModuleLending {
		for _, item := range items {
			for _, t := range item.Detail.SupplyTokens {
				tok := a.mapToken(t, entity.TokenRoleSupplied)
				tokens = append(tokens, tok)
				details.SuppliedCount++
				details.SuppliedValueUSD += tokenValue(tok)
			}
			for _, t := range item.Detail.BorrowTokens {
				tok := a.mapToken(t, entity.TokenRoleBorrowed)
				tokens = append(tokens, tok)
				details.BorrowedCount++
				details.BorrowedValueUSD += tokenValue(tok)
			}
		}
		if details.SuppliedCount == 0 && details.BorrowedCount == 0 {
			a.logger.Warn("Dropping lending group without supplied or borrowed entries",
				zap.String("protocol", proto.ID),
				zap.String("poolID", poolID),
				zap.String("network", network.String()))
			return entity.Position{}, false
		}
		details.NetValueUSD = details.SuppliedValueUSD - details.BorrowedValueUSD
		kind = entity.PositionKindLending
	} else {
		for _, item := range items {
			for _, t := range item.Detail.SupplyTokens {
				tok := a.mapToken(t, entity.TokenRoleSupplied)
				tokens = append(tokens, tok)
				details.StakedCount++
				details.StakedValueUSD += tokenValue(tok)
			}
			for _, t := range item.Detail.TokenList {
				tok := a.mapToken(t, entity.TokenRoleSupplied)
				tokens = append(tokens, tok)
				details.StakedCount++
				details.StakedValueUSD += tokenValue(tok)
			}
			for _, t := range item.Detail.RewardTokens {
				tok := a.mapToken(t, entity.TokenRoleReward)
				tokens = append(tokens, tok)
				details.RewardsCount++
				details.RewardsValueUSD += tokenValue(tok)
			}
		}
		if details.StakedCount == 0 {
			a.logger.Warn("Dropping group without staked entries",
				zap.String("protocol", proto.ID),
				zap.String("poolID", poolID),
				zap.String("network", network.String()))
			return entity.Position{}, false
		}
		switch module {
		case entity.ModuleFarming:
			kind = entity.PositionKindFarming
		case entity.ModuleStaking:
			kind = entity.PositionKindStaked
		case entity.ModuleYield:
			kind = entity.PositionKindYield
		case entity.ModuleLiquidity:
			kind = entity.PositionKindLiquidity
		default:
			kind = entity.PositionKindOther
		}
	}

	protocol := entity.Protocol{ID: proto.ID, Name: proto.Name, URL: proto.SiteURL, LogoURL: proto.LogoURL}
	if protocol.Name == "" {
		protocol = inferProtocol(tokens)
	}

	return entity.Position{
		ID:       fmt.Sprintf("%s:%s:%s", debankProviderName, proto.ID, poolID),
		Network:  network,
		Protocol: protocol,
		Module:   module,
		PoolID:   poolID,
		Kind:     kind,
		Tokens:   tokens,
		Details:  details,
		Account:  account,
	}, true
}

func (a *debankAdapter) mapToken(t entity.DebankToken, role entity.TokenRole) entity.PositionToken {
	tok := entity.PositionToken{
		Symbol:     t.Symbol,
		Name:       t.Name,
		Decimals:   t.Decimals,
		Role:       role,
		RawBalance: t.RawAmount,
		Balance:    t.Amount,
		IsNative:   t.IsNative || t.ID == t.Chain,
		IsDebt:     role == entity.TokenRoleBorrowed,
	}
	if tok.IsNative {
		tok.Address = entity.ZeroAddress
	} else {
		tok.Address = entity.CanonicalAddress(t.ID)
	}
	if t.Price > 0 {
		price := t.Price
		value := t.Amount * t.Price
		tok.PriceUSD = &price
		tok.ValueUSD = &value
		tok.PriceSource = entity.PriceSourceProviderFallback
	}
	return tok
}

func tokenValue(tok entity.PositionToken) float64 {
	if tok.ValueUSD == nil {
		return 0
	}
	return *tok.ValueUSD
}
