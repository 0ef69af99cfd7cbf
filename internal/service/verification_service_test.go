package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"defi_portfolio/internal/cache"
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/queue"
	"defi_portfolio/internal/repository"

	"go.uber.org/zap"
)

type fakeAuthority struct {
	calls   atomic.Int64
	records map[string]entity.AuthorityRecord
	err     error
}

func (f *fakeAuthority) FindBySymbols(_ context.Context, symbols []string) (map[string]entity.AuthorityRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]entity.AuthorityRecord)
	for _, s := range symbols {
		if rec, ok := f.records[strings.ToUpper(s)]; ok {
			out[strings.ToUpper(s)] = rec
		}
	}
	return out, nil
}

func newVerificationFixture(t *testing.T, authority *fakeAuthority) (*verificationServiceImpl, *repository.InMemoryRegistryStore) {
	t.Helper()
	store := cache.NewStore(nil, cache.Options{
		DefaultExpiration: time.Minute,
		CleanupInterval:   time.Minute,
		MaxConcurrentOps:  8,
	}, zap.NewNop())
	backing := repository.NewInMemoryRegistryStore()
	verified := repository.NewVerifiedTokenRepository(store, backing, time.Minute, zap.NewNop())
	unlisted := repository.NewUnlistedTokenRepository(store, backing, time.Minute, zap.NewNop())
	q := queue.NewMetadataQueue(64, zap.NewNop())

	svc := NewVerificationService(verified, unlisted, authority, q, config.VerificationConfig{
		MaxConcurrentLookups: 4,
		LookupTimeoutMillis:  1000,
		MaxSymbolsPerLookup:  50,
	}, zap.NewNop())
	return svc.(*verificationServiceImpl), backing
}

func TestClassifyInvalidSymbolSkipsLookup(t *testing.T) {
	authority := &fakeAuthority{records: map[string]entity.AuthorityRecord{
		"USDC": {ID: "usd-coin", IsActive: true, Symbol: "USDC", Name: "USD Coin"},
	}}
	svc, _ := newVerificationFixture(t, authority)

	verdicts, err := svc.ClassifyAndVerify(context.Background(), "ethereum", []entity.TokenRef{
		{Address: "0xAAA", Symbol: "X"},
		{Address: "0xBBB", Symbol: "USDC"},
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	if v := verdicts["0xaaa"]; !v.IsUnlisted || v.IsVerified {
		t.Errorf("expected 0xAAA unlisted, got %+v", v)
	}
	if v := verdicts["0xbbb"]; !v.IsVerified || v.IsUnlisted {
		t.Errorf("expected 0xBBB verified, got %+v", v)
	}
	if calls := authority.calls.Load(); calls != 1 {
		t.Errorf("expected exactly 1 batched lookup, got %d", calls)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	authority := &fakeAuthority{records: map[string]entity.AuthorityRecord{
		"USDC": {ID: "usd-coin", IsActive: true, Symbol: "USDC", Name: "USD Coin"},
	}}
	svc, _ := newVerificationFixture(t, authority)
	ctx := context.Background()
	tokens := []entity.TokenRef{
		{Address: "0xAAA", Symbol: "X"},
		{Address: "0xBBB", Symbol: "USDC"},
	}

	first, err := svc.ClassifyAndVerify(ctx, "ethereum", tokens)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	callsAfterFirst := authority.calls.Load()

	second, err := svc.ClassifyAndVerify(ctx, "ethereum", tokens)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if calls := authority.calls.Load(); calls != callsAfterFirst {
		t.Errorf("second pass made %d extra lookup calls", calls-callsAfterFirst)
	}
	for addr, v := range first {
		if second[addr] != v {
			t.Errorf("verdict changed between passes for %s: %+v vs %+v", addr, v, second[addr])
		}
	}
}

func TestClassifyInactiveMatchIsUnlisted(t *testing.T) {
	authority := &fakeAuthority{records: map[string]entity.AuthorityRecord{
		"DEAD": {ID: "dead-token", IsActive: false, Symbol: "DEAD"},
	}}
	svc, backing := newVerificationFixture(t, authority)

	verdicts, err := svc.ClassifyAndVerify(context.Background(), "ethereum", []entity.TokenRef{
		{Address: "0xDDD", Symbol: "DEAD"},
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if v := verdicts["0xddd"]; !v.IsUnlisted {
		t.Errorf("expected inactive match unlisted, got %+v", v)
	}

	unlisted, _ := backing.LoadUnlisted(context.Background(), "ethereum")
	if len(unlisted) != 1 {
		t.Fatalf("expected 1 persisted unlisted record, got %d", len(unlisted))
	}
}

func TestRecheckPromotesToken(t *testing.T) {
	authority := &fakeAuthority{records: map[string]entity.AuthorityRecord{}}
	svc, _ := newVerificationFixture(t, authority)
	ctx := context.Background()

	verdicts, err := svc.ClassifyAndVerify(ctx, "ethereum", []entity.TokenRef{
		{Address: "0xEEE", Symbol: "NEWT"},
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !verdicts["0xeee"].IsUnlisted {
		t.Fatal("expected token unlisted before promotion")
	}

	// The token later becomes active upstream; only Recheck may move it
	// out of the unlisted state.
	authority.records["NEWT"] = entity.AuthorityRecord{ID: "newt", IsActive: true, Symbol: "NEWT"}

	again, err := svc.ClassifyAndVerify(ctx, "ethereum", []entity.TokenRef{{Address: "0xEEE", Symbol: "NEWT"}})
	if err != nil {
		t.Fatalf("re-classify failed: %v", err)
	}
	if !again["0xeee"].IsUnlisted {
		t.Error("plain classification must not reclassify an unlisted token")
	}

	verdict, err := svc.Recheck(ctx, "ethereum", entity.TokenRef{Address: "0xEEE", Symbol: "NEWT"})
	if err != nil {
		t.Fatalf("recheck failed: %v", err)
	}
	if !verdict.IsVerified {
		t.Errorf("expected recheck to verify the token, got %+v", verdict)
	}
}

func TestIsValidSymbol(t *testing.T) {
	cases := []struct {
		symbol string
		valid  bool
	}{
		{"USDC", true},
		{"wstETH", true},
		{"x", false},          // too short
		{"TOKEN-2.0", true},
		{"1234", false},       // no letter
		{"WAY-TOO-LONG-SYMBOL", false},
		{"US DC", false},      // whitespace
		{"$CAM", false},       // disallowed character
		{"", false},
	}
	for _, tc := range cases {
		if got := isValidSymbol(tc.symbol); got != tc.valid {
			t.Errorf("isValidSymbol(%q) = %v, want %v", tc.symbol, got, tc.valid)
		}
	}
}
