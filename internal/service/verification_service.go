package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/pkg/utils"
	"defi_portfolio/internal/port"
	"defi_portfolio/internal/queue"
	"defi_portfolio/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const invalidSymbolReason = "invalid symbol format"

// verificationServiceImpl classifies token addresses against the trust
// registries, consulting the external authority only for unknown tokens.
type verificationServiceImpl struct {
	verified  repository.VerifiedTokenRepository
	unlisted  repository.UnlistedTokenRepository
	authority port.AuthorityLookup
	metaQueue *queue.MetadataQueue

	// lookupSem bounds concurrent authority lookups across all requests.
	lookupSem     *semaphore.Weighted
	lookupTimeout time.Duration
	maxSymbols    int

	logger *zap.Logger
}

// NewVerificationService creates the token verification service.
func NewVerificationService(
	verified repository.VerifiedTokenRepository,
	unlisted repository.UnlistedTokenRepository,
	authority port.AuthorityLookup,
	metaQueue *queue.MetadataQueue,
	cfg config.VerificationConfig,
	logger *zap.Logger,
) port.VerificationService {
	return &verificationServiceImpl{
		verified:      verified,
		unlisted:      unlisted,
		authority:     authority,
		metaQueue:     metaQueue,
		lookupSem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentLookups)),
		lookupTimeout: time.Duration(cfg.LookupTimeoutMillis) * time.Millisecond,
		maxSymbols:    cfg.MaxSymbolsPerLookup,
		logger:        logger.Named("VerificationService"),
	}
}

// ClassifyAndVerify classifies each token address as verified, unlisted or
// (transiently) unknown. Registry hits short-circuit, so re-running on an
// already classified set makes zero external calls.
func (s *verificationServiceImpl) ClassifyAndVerify(ctx context.Context, network entity.Network, tokens []entity.TokenRef) (map[string]entity.Verdict, error) {
	verdicts := make(map[string]entity.Verdict, len(tokens))
	if len(tokens) == 0 {
		return verdicts, nil
	}

	verifiedReg, err := s.verified.Lookup(ctx, network)
	if err != nil {
		return nil, err
	}
	unlistedReg, err := s.unlisted.Lookup(ctx, network)
	if err != nil {
		return nil, err
	}

	var unknown []entity.TokenRef
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		addr := entity.CanonicalAddress(tok.Address)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		if _, ok := verifiedReg[addr]; ok {
			verdicts[addr] = entity.Verdict{IsVerified: true}
			continue
		}
		if _, ok := unlistedReg[addr]; ok {
			verdicts[addr] = entity.Verdict{IsUnlisted: true}
			continue
		}
		unknown = append(unknown, entity.TokenRef{Address: addr, Symbol: strings.TrimSpace(tok.Symbol)})
	}
	if len(unknown) == 0 {
		return verdicts, nil
	}

	// Invalid symbols are unlisted immediately, without spending an
	// external lookup on them.
	candidates := make([]entity.TokenRef, 0, len(unknown))
	for _, tok := range unknown {
		if !isValidSymbol(tok.Symbol) {
			if err := s.markUnlisted(ctx, network, tok.Address, invalidSymbolReason); err != nil {
				s.logger.Error("Failed to record unlisted token",
					zap.String("address", tok.Address), zap.Error(err))
			}
			verdicts[tok.Address] = entity.Verdict{IsUnlisted: true}
			continue
		}
		candidates = append(candidates, tok)
	}
	if len(candidates) == 0 {
		return verdicts, nil
	}

	records, lookupErr := s.lookupAuthority(ctx, candidates)
	if lookupErr != nil {
		s.logger.Warn("Authority lookup degraded",
			zap.String("network", network.String()), zap.Error(lookupErr))
	}

	for _, tok := range candidates {
		record, found := records[strings.ToUpper(tok.Symbol)]
		if found && record.IsActive {
			vt := entity.VerifiedToken{
				Address:    tok.Address,
				Symbol:     record.Symbol,
				Name:       record.Name,
				ExternalID: record.ID,
			}
			if vt.Symbol == "" {
				vt.Symbol = tok.Symbol
			}
			if err := s.verified.Upsert(ctx, network, vt); err != nil {
				s.logger.Error("Failed to record verified token",
					zap.String("address", tok.Address), zap.Error(err))
			}
			s.metaQueue.Enqueue(queue.MetadataWriteEvent{
				Network: network,
				Address: tok.Address,
				Symbol:  vt.Symbol,
				Name:    vt.Name,
				Source:  "authority",
			})
			verdicts[tok.Address] = entity.Verdict{IsVerified: true}
			continue
		}

		reason := "no active authority match"
		if !found && lookupErr != nil {
			reason = "authority lookup failed"
		}
		if err := s.markUnlisted(ctx, network, tok.Address, reason); err != nil {
			s.logger.Error("Failed to record unlisted token",
				zap.String("address", tok.Address), zap.Error(err))
		}
		verdicts[tok.Address] = entity.Verdict{IsUnlisted: true}
	}
	return verdicts, nil
}

// Recheck removes the unlisted record for a token and classifies it again.
// This is the only path out of the unlisted state.
func (s *verificationServiceImpl) Recheck(ctx context.Context, network entity.Network, token entity.TokenRef) (entity.Verdict, error) {
	addr := entity.CanonicalAddress(token.Address)
	if err := s.unlisted.Remove(ctx, network, addr); err != nil {
		return entity.Verdict{}, err
	}
	verdicts, err := s.ClassifyAndVerify(ctx, network, []entity.TokenRef{{Address: addr, Symbol: token.Symbol}})
	if err != nil {
		return entity.Verdict{}, err
	}
	return verdicts[addr], nil
}

// lookupAuthority runs the batched symbol lookups under the bulkhead
// semaphore. Each batch carries its own hard timeout so a stalled upstream
// cannot pin the whole fan-out; batches that fail are logged and skipped,
// partial results are still returned.
func (s *verificationServiceImpl) lookupAuthority(ctx context.Context, candidates []entity.TokenRef) (map[string]entity.AuthorityRecord, error) {
	symbols := make([]string, 0, len(candidates))
	for _, tok := range candidates {
		symbols = append(symbols, tok.Symbol)
	}
	symbols = utils.Dedup(symbols)

	results := make(map[string]entity.AuthorityRecord, len(symbols))
	var mu sync.Mutex
	var firstErr error

	g, gCtx := errgroup.WithContext(ctx)
	for _, batch := range utils.BatchStrings(symbols, s.maxSymbols) {
		batch := batch
		g.Go(func() error {
			if err := s.lookupSem.Acquire(gCtx, 1); err != nil {
				return fmt.Errorf("acquire lookup slot: %w", err)
			}
			defer s.lookupSem.Release(1)

			lookupCtx, cancel := context.WithTimeout(gCtx, s.lookupTimeout)
			defer cancel()

			records, err := s.authority.FindBySymbols(lookupCtx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				s.logger.Warn("Authority batch lookup failed",
					zap.Int("symbols", len(batch)), zap.Error(err))
				return nil
			}
			for symbol, record := range records {
				results[symbol] = record
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, firstErr
}

func (s *verificationServiceImpl) markUnlisted(ctx context.Context, network entity.Network, address, reason string) error {
	return s.unlisted.Upsert(ctx, network, entity.UnlistedToken{
		Address:   address,
		Reason:    reason,
		CheckedAt: time.Now().UTC(),
	})
}

// isValidSymbol implements the pre-filter applied before any external
// lookup: 2-10 characters, letters/digits/hyphen/period only, at least one
// letter.
func isValidSymbol(symbol string) bool {
	s := strings.TrimSpace(symbol)
	if len(s) < 2 || len(s) > 10 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return hasLetter
}
