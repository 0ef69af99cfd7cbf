package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// portfolioServiceImpl orchestrates the read path: provider fan-out,
// verification, price enrichment, and the transformation into the output
// view. Phases within one request are strictly sequential; per-network
// work inside multi-network calls runs in parallel.
type portfolioServiceImpl struct {
	providers   []port.PositionProvider
	enrichment  port.PriceEnrichmentService
	transformer port.PortfolioTransformer
	cfg         *config.Config

	maxConcurrentNetworks int
	fetchTimeout          time.Duration
	logger                *zap.Logger
}

// NewPortfolioService creates the portfolio read service over the given
// position providers.
func NewPortfolioService(
	providers []port.PositionProvider,
	enrichment port.PriceEnrichmentService,
	transformer port.PortfolioTransformer,
	cfg *config.Config,
	logger *zap.Logger,
) port.PortfolioService {
	return &portfolioServiceImpl{
		providers:             providers,
		enrichment:            enrichment,
		transformer:           transformer,
		cfg:                   cfg,
		maxConcurrentNetworks: cfg.Portfolio.MaxConcurrentNetworks,
		fetchTimeout:          time.Duration(cfg.Portfolio.FetchTimeoutMillis) * time.Millisecond,
		logger:                logger.Named("PortfolioService"),
	}
}

// GetPositions builds the single-network DeFi view for one wallet.
// Provider failures degrade the view and are reported in its error list;
// the call only fails when no provider produced anything.
func (s *portfolioServiceImpl) GetPositions(ctx context.Context, wallet string, network entity.Network) (*entity.CategoryGroupedPortfolio, error) {
	if _, ok := s.cfg.NetworkByID(network.String()); !ok {
		return nil, fmt.Errorf("network %s: %w", network, entity.ErrUnsupportedNetwork)
	}

	supported := make([]port.PositionProvider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Supports(network) {
			supported = append(supported, p)
		}
	}
	if len(supported) == 0 {
		return nil, fmt.Errorf("network %s: %w", network, entity.ErrNoProviders)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var mu sync.Mutex
	var positions []entity.Position
	var providerErrors []entity.PortfolioError
	succeeded := 0

	g, gCtx := errgroup.WithContext(fetchCtx)
	for _, p := range supported {
		p := p
		g.Go(func() error {
			fetched, err := p.FetchPositions(gCtx, wallet, network)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Provider fetch failed",
					zap.String("provider", p.Name()),
					zap.String("wallet", wallet),
					zap.String("network", network.String()),
					zap.Error(err))
				providerErrors = append(providerErrors, entity.PortfolioError{
					WalletAddress: wallet,
					Network:       network,
					Provider:      p.Name(),
					Message:       err.Error(),
				})
				return nil
			}
			succeeded++
			positions = append(positions, fetched...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("all providers failed for wallet %s on %s: %s", wallet, network, providerErrors[0].Message)
	}

	enriched, priceFailures := s.enrichment.EnrichWithPrices(ctx, network, positions)
	portfolio := s.transformer.Transform(wallet, network, enriched, priceFailures)
	portfolio.Errors = providerErrors
	return portfolio, nil
}

// GetMultiNetworkPositions fans out per-network portfolio builds in
// parallel and merges them. Failed networks become error entries, they do
// not sink the aggregate.
func (s *portfolioServiceImpl) GetMultiNetworkPositions(ctx context.Context, wallet string, networks []entity.Network) (*entity.AggregatedPortfolio, error) {
	if len(networks) == 0 {
		for _, node := range s.cfg.Networks {
			networks = append(networks, entity.Network(node.Identifier))
		}
	}

	aggregated := &entity.AggregatedPortfolio{
		WalletAddress:       wallet,
		PortfoliosByNetwork: make(map[entity.Network]entity.CategoryGroupedPortfolio, len(networks)),
	}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentNetworks)

	for _, network := range networks {
		network := network
		g.Go(func() error {
			portfolio, err := s.GetPositions(gCtx, wallet, network)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				aggregated.Errors = append(aggregated.Errors, entity.PortfolioError{
					WalletAddress: wallet,
					Network:       network,
					Message:       err.Error(),
				})
				return nil
			}
			aggregated.PortfoliosByNetwork[network] = *portfolio
			aggregated.TotalValueUSD += portfolio.TotalValueUSD
			if portfolio.HasUnverifiedTokens {
				aggregated.HasUnverifiedTokens = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(aggregated.PortfoliosByNetwork) == 0 && len(aggregated.Errors) > 0 {
		return nil, fmt.Errorf("all %d network portfolios failed for wallet %s: %s", len(networks), wallet, aggregated.Errors[0].Message)
	}
	return aggregated, nil
}
