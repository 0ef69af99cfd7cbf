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

const zerionProviderName = "zerion"

// zerionAdapter maps the Zerion-style flat position list onto canonical
// positions. Flat entries sharing a protocol and group id are merged into
// one logical position.
type zerionAdapter struct {
	client         client.ZerionClient
	cfg            *config.Config
	maxConcurrency int
	logger         *zap.Logger
}

// NewZerionAdapter creates the Zerion position provider.
func NewZerionAdapter(cl client.ZerionClient, cfg *config.Config, logger *zap.Logger) port.PositionProvider {
	maxConcurrency := cfg.Portfolio.MaxConcurrentNetworks
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &zerionAdapter{
		client:         cl,
		cfg:            cfg,
		maxConcurrency: maxConcurrency,
		logger:         logger.Named("ZerionAdapter"),
	}
}

func (a *zerionAdapter) Name() string {
	return zerionProviderName
}

func (a *zerionAdapter) Supports(network entity.Network) bool {
	node, ok := a.cfg.NetworkByID(network.String())
	return ok && node.ZerionChainID != ""
}

func (a *zerionAdapter) FetchPositions(ctx context.Context, wallet string, network entity.Network) ([]entity.Position, error) {
	node, ok := a.cfg.NetworkByID(network.String())
	if !ok || node.ZerionChainID == "" {
		return nil, fmt.Errorf("provider %s does not support network %s: %w", zerionProviderName, network, entity.ErrUnsupportedNetwork)
	}

	flat, err := a.client.GetWalletPositions(ctx, wallet, node.ZerionChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions from %s for %s on %s: %w", zerionProviderName, wallet, network, err)
	}

	groupOrder := make([]string, 0, len(flat))
	groups := make(map[string][]entity.ZerionPositionData)
	for _, p := range flat {
		key := p.ID
		if p.Attributes.GroupID != "" {
			key = p.Attributes.Protocol + "|" + p.Attributes.GroupID
		}
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], p)
	}

	var positions []entity.Position
	for _, key := range groupOrder {
		if pos, ok := a.aggregateGroup(network, node, key, groups[key]); ok {
			positions = append(positions, pos)
		}
	}
	a.logger.Debug("Mapped provider payload",
		zap.String("wallet", wallet),
		zap.String("network", network.String()),
		zap.Int("flatEntries", len(flat)),
		zap.Int("positions", len(positions)))
	return positions, nil
}

func (a *zerionAdapter) FetchPositionsMultiNetwork(ctx context.Context, wallet string, networks []entity.Network) (map[entity.Network][]entity.Position, error) {
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
		return results, fmt.Errorf("all %d network fetches failed for wallet %s via %s", len(networks), wallet, zerionProviderName)
	}
	return results, nil
}

func (a *zerionAdapter) aggregateGroup(network entity.Network, node config.NetworkNode, groupKey string, entries []entity.ZerionPositionData) (entity.Position, bool) {
	module := entity.ModuleOther
	for _, e := range entries {
		if e.Attributes.Module != "" {
			module = moduleFromHint(e.Attributes.Module)
			break
		}
	}

	kinds := make([]entity.PositionKind, len(entries))
	hasStaked, hasBorrowed, hasSupplied, hasReward := false, false, false, false
	for i, e := range entries {
		kinds[i] = kindFromTypeAndModule(e.Attributes.PositionType, module)
		switch kinds[i] {
		case entity.PositionKindStaked:
			hasStaked = true
		case entity.PositionKindBorrowed:
			hasBorrowed = true
		case entity.PositionKindSupplied, entity.PositionKindYield:
			hasSupplied = true
		case entity.PositionKindReward:
			hasReward = true
		}
	}

	var account *entity.AccountData
	for _, e := range entries {
		if e.Attributes.HealthFactor == nil && e.Attributes.YieldRate == nil {
			continue
		}
		if account == nil {
			account = &entity.AccountData{}
		}
		if e.Attributes.HealthFactor != nil {
			account.HealthFactor = e.Attributes.HealthFactor
		}
		if e.Attributes.YieldRate != nil {
			account.NetAPR = e.Attributes.YieldRate
		}
	}

	var tokens []entity.PositionToken
	var details entity.PositionDetails
	var kind entity.PositionKind

	switch {
	case hasBorrowed || module == entity.ModuleLending:
		if !hasSupplied && !hasBorrowed {
			a.logger.Warn("Dropping lending group without supplied or borrowed entries",
				zap.String("group", groupKey),
				zap.String("network", network.String()))
			return entity.Position{}, false
		}
		for i, e := range entries {
			role := entity.TokenRoleSupplied
			if kinds[i] == entity.PositionKindBorrowed {
				role = entity.TokenRoleBorrowed
			} else if kinds[i] == entity.PositionKindReward {
				role = entity.TokenRoleReward
			}
			tok := a.mapToken(e, node, role)
			tokens = append(tokens, tok)
			switch role {
			case entity.TokenRoleSupplied:
				details.SuppliedCount++
				details.SuppliedValueUSD += tokenValue(tok)
			case entity.TokenRoleBorrowed:
				details.BorrowedCount++
				details.BorrowedValueUSD += tokenValue(tok)
			}
		}
		details.NetValueUSD = details.SuppliedValueUSD - details.BorrowedValueUSD
		kind = entity.PositionKindLending

	case hasStaked:
		for i, e := range entries {
			role := entity.TokenRoleSupplied
			if kinds[i] == entity.PositionKindReward {
				role = entity.TokenRoleReward
			}
			tok := a.mapToken(e, node, role)
			tokens = append(tokens, tok)
			if role == entity.TokenRoleReward {
				details.RewardsCount++
				details.RewardsValueUSD += tokenValue(tok)
			} else {
				details.StakedCount++
				details.StakedValueUSD += tokenValue(tok)
			}
		}
		if module == entity.ModuleFarming {
			kind = entity.PositionKindFarming
		} else {
			kind = entity.PositionKindStaked
		}

	default:
		// A grouped set of reward entries with nothing backing them has no
		// principal position to attach to; same drop rule as reward-only
		// pools on the other provider.
		if entries[0].Attributes.GroupID != "" && hasReward && !hasSupplied {
			a.logger.Warn("Dropping group with rewards but no staked or supplied entries",
				zap.String("group", groupKey),
				zap.String("network", network.String()))
			return entity.Position{}, false
		}
		for i, e := range entries {
			tok := a.mapToken(e, node, roleForKind(kinds[i]))
			tokens = append(tokens, tok)
		}
		kind = kinds[0]
	}

	protoName := entries[0].Attributes.Protocol
	protocol := entity.Protocol{
		ID:      protoName,
		Name:    protoName,
		URL:     entries[0].Attributes.ProtocolURL,
		LogoURL: entries[0].Attributes.ProtocolLogo,
	}
	if protocol.Name == "" {
		protocol = inferProtocol(tokens)
	}

	return entity.Position{
		ID:       fmt.Sprintf("%s:%s", zerionProviderName, groupKey),
		Network:  network,
		Protocol: protocol,
		Module:   module,
		PoolID:   entries[0].Attributes.GroupID,
		Kind:     kind,
		Tokens:   tokens,
		Details:  details,
		Account:  account,
	}, true
}

func (a *zerionAdapter) mapToken(e entity.ZerionPositionData, node config.NetworkNode, role entity.TokenRole) entity.PositionToken {
	attrs := e.Attributes
	tok := entity.PositionToken{
		Symbol:     attrs.Fungible.Symbol,
		Name:       attrs.Fungible.Name,
		Decimals:   attrs.Quantity.Decimals,
		Role:       role,
		RawBalance: attrs.Quantity.Int,
		Balance:    attrs.Quantity.Float,
		IsDebt:     role == entity.TokenRoleBorrowed,
	}

	for _, impl := range attrs.Fungible.Implementations {
		if impl.ChainID == node.ZerionChainID {
			tok.Address = entity.CanonicalAddress(impl.Address)
			if impl.Decimals > 0 {
				tok.Decimals = impl.Decimals
			}
			break
		}
	}
	if tok.Address == "" {
		tok.Address = entity.ZeroAddress
		tok.IsNative = true
	}

	if attrs.Price != nil && *attrs.Price > 0 {
		price := *attrs.Price
		value := price * attrs.Quantity.Float
		if attrs.Value != nil {
			value = *attrs.Value
		}
		tok.PriceUSD = &price
		tok.ValueUSD = &value
		tok.PriceSource = entity.PriceSourceProviderFallback
	}
	return tok
}
