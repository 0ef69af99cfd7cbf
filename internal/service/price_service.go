package service

import (
	"context"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/metrics"
	"defi_portfolio/internal/pkg/utils"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// priceEnrichmentServiceImpl prices verified tokens from the authoritative
// source, applies provider fallbacks everywhere else, and recomputes the
// derived position totals.
type priceEnrichmentServiceImpl struct {
	pricing      port.PricingClient
	verification port.VerificationService
	cfg          *config.Config
	limiter      *rate.Limiter
	maxBatch     int
	logger       *zap.Logger
}

// NewPriceEnrichmentService creates the price enrichment service.
func NewPriceEnrichmentService(
	pricing port.PricingClient,
	verification port.VerificationService,
	cfg *config.Config,
	logger *zap.Logger,
) port.PriceEnrichmentService {
	return &priceEnrichmentServiceImpl{
		pricing:      pricing,
		verification: verification,
		cfg:          cfg,
		limiter:      rate.NewLimiter(rate.Limit(cfg.Pricing.RateLimit), cfg.Pricing.BurstLimit),
		maxBatch:     cfg.Pricing.MaxTokensPerBatchRequest,
		logger:       logger.Named("PriceEnrichmentService"),
	}
}

// EnrichWithPrices classifies every token referenced across the positions,
// fetches authoritative prices for the verified subset in batched calls,
// and recomputes derived totals. A price fetch failure degrades the
// affected tokens, never the whole pass.
func (s *priceEnrichmentServiceImpl) EnrichWithPrices(ctx context.Context, network entity.Network, positions []entity.Position) ([]entity.Position, []entity.PriceFailure) {
	if len(positions) == 0 {
		return positions, nil
	}

	node, _ := s.cfg.NetworkByID(network.String())

	refs, hasNative := collectTokenRefs(positions)
	verdicts, err := s.verification.ClassifyAndVerify(ctx, network, refs)
	if err != nil {
		// Without classification no token may be priced authoritatively;
		// positions keep their provider fallbacks.
		s.logger.Error("Token classification failed, skipping authoritative pricing",
			zap.String("network", network.String()), zap.Error(err))
		verdicts = map[string]entity.Verdict{}
	}

	fetchSet := make([]string, 0, len(refs))
	for _, ref := range refs {
		if verdicts[ref.Address].IsVerified {
			fetchSet = append(fetchSet, ref.Address)
		}
	}
	// Wrapped-native proxy: the native coin has no contract to price, so
	// the configured wrapped variant's market price stands in for it.
	if hasNative && node.WrappedNativeAddress != "" {
		fetchSet = append(fetchSet, node.WrappedNativeAddress)
	}
	fetchSet = utils.Dedup(fetchSet)

	prices, failures := s.fetchPrices(ctx, network, fetchSet)

	var nativeProxyPrice *float64
	if hasNative && node.WrappedNativeAddress != "" {
		if p, ok := prices[node.WrappedNativeAddress]; ok {
			nativeProxyPrice = &p
		}
	}

	enriched := make([]entity.Position, len(positions))
	for i, pos := range positions {
		enriched[i] = s.enrichPosition(pos, verdicts, prices, nativeProxyPrice)
	}
	return enriched, failures
}

// collectTokenRefs gathers the de-duplicated token set referenced across
// all positions. Native entries are reported separately: they have no
// contract address to classify.
func collectTokenRefs(positions []entity.Position) ([]entity.TokenRef, bool) {
	seen := make(map[string]struct{})
	var refs []entity.TokenRef
	hasNative := false
	for _, pos := range positions {
		for _, tok := range pos.Tokens {
			if tok.IsNative || tok.Address == entity.ZeroAddress {
				hasNative = true
				continue
			}
			addr := entity.CanonicalAddress(tok.Address)
			if addr == "" {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			refs = append(refs, entity.TokenRef{Address: addr, Symbol: tok.Symbol})
		}
	}
	return refs, hasNative
}

// fetchPrices runs the batched, rate-limited authoritative price fetch.
// Failed batches become per-token failure entries.
func (s *priceEnrichmentServiceImpl) fetchPrices(ctx context.Context, network entity.Network, addresses []string) (map[string]float64, []entity.PriceFailure) {
	prices := make(map[string]float64, len(addresses))
	var failures []entity.PriceFailure
	if len(addresses) == 0 {
		return prices, nil
	}

	for _, batch := range utils.BatchStrings(addresses, s.maxBatch) {
		if err := s.limiter.Wait(ctx); err != nil {
			for _, addr := range batch {
				failures = append(failures, entity.PriceFailure{
					Network: network, Address: addr, Reason: "pricing cancelled: " + err.Error(),
				})
			}
			continue
		}

		batchPrices, batchFailures, err := s.pricing.FetchPrices(ctx, network, batch)
		if err != nil {
			metrics.PriceBatchFailuresTotal.Inc()
			s.logger.Warn("Price batch fetch failed",
				zap.String("network", network.String()),
				zap.Int("tokens", len(batch)),
				zap.Error(err))
			for _, addr := range batch {
				failures = append(failures, entity.PriceFailure{
					Network: network, Address: addr, Reason: "price fetch failed: " + err.Error(),
				})
			}
			continue
		}
		for addr, price := range batchPrices {
			prices[entity.CanonicalAddress(addr)] = price
		}
		failures = append(failures, batchFailures...)
	}
	return prices, failures
}

func (s *priceEnrichmentServiceImpl) enrichPosition(pos entity.Position, verdicts map[string]entity.Verdict, prices map[string]float64, nativeProxyPrice *float64) entity.Position {
	hasUnverified := false
	for i := range pos.Tokens {
		tok := &pos.Tokens[i]

		if tok.IsNative || tok.Address == entity.ZeroAddress {
			// The chain's own coin needs no registry entry.
			tok.IsVerified = true
			if nativeProxyPrice != nil {
				applyAuthoritativePrice(tok, *nativeProxyPrice)
				tok.IsNativeProxyPrice = true
			}
			continue
		}

		verdict := verdicts[entity.CanonicalAddress(tok.Address)]
		tok.IsVerified = verdict.IsVerified
		tok.IsUnlisted = verdict.IsUnlisted
		if !verdict.IsVerified {
			hasUnverified = true
			// Unverified tokens keep whatever the provider reported.
			if tok.PriceUSD != nil {
				tok.PriceSource = entity.PriceSourceProviderFallback
			}
			continue
		}

		if price, ok := prices[entity.CanonicalAddress(tok.Address)]; ok {
			applyAuthoritativePrice(tok, price)
		} else if tok.PriceUSD != nil {
			tok.PriceSource = entity.PriceSourceProviderFallback
		}
	}

	recomputeTotals(&pos)
	pos.HasUnverifiedTokens = hasUnverified
	pos.IsDisconnectedFromGlobalPricing = hasUnverified

	if pos.Account != nil && pos.Account.NetAPR != nil {
		yearly := pos.TotalValueUSD * *pos.Account.NetAPR
		pos.Earnings = &entity.ProjectedEarnings{
			DailyUSD:   yearly / 365,
			MonthlyUSD: yearly / 12,
			YearlyUSD:  yearly,
		}
	}
	return pos
}

func applyAuthoritativePrice(tok *entity.PositionToken, price float64) {
	value := tok.Balance * price
	tok.PriceUSD = &price
	tok.ValueUSD = &value
	tok.PriceSource = entity.PriceSourceAuthoritative
}

// recomputeTotals rebuilds the kind-specific sub-totals and the position
// total from the now-priced tokens. Upstream totals are never trusted.
func recomputeTotals(pos *entity.Position) {
	var details entity.PositionDetails

	switch pos.Kind {
	case entity.PositionKindLending:
		for _, tok := range pos.Tokens {
			switch tok.Role {
			case entity.TokenRoleSupplied:
				details.SuppliedCount++
				details.SuppliedValueUSD += tokenValueUSD(tok)
			case entity.TokenRoleBorrowed:
				details.BorrowedCount++
				details.BorrowedValueUSD += tokenValueUSD(tok)
			}
		}
		details.NetValueUSD = details.SuppliedValueUSD - details.BorrowedValueUSD
		pos.TotalValueUSD = details.NetValueUSD

	case entity.PositionKindFarming, entity.PositionKindStaked:
		for _, tok := range pos.Tokens {
			if tok.Role == entity.TokenRoleReward {
				details.RewardsCount++
				details.RewardsValueUSD += tokenValueUSD(tok)
			} else {
				details.StakedCount++
				details.StakedValueUSD += tokenValueUSD(tok)
			}
		}
		pos.TotalValueUSD = details.StakedValueUSD + details.RewardsValueUSD

	default:
		total := 0.0
		for _, tok := range pos.Tokens {
			total += tokenValueUSD(tok)
		}
		pos.TotalValueUSD = total
	}

	pos.Details = details
}

func tokenValueUSD(tok entity.PositionToken) float64 {
	if tok.ValueUSD == nil {
		return 0
	}
	return *tok.ValueUSD
}
