package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/metrics"
	"defi_portfolio/internal/port"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// authorityClientImpl queries the external authoritative token registry by
// symbol, in batch.
type authorityClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAuthorityClient creates an authority lookup client.
func NewAuthorityClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) port.AuthorityLookup {
	return &authorityClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("AuthorityClient"),
	}
}

type authorityCoin struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// FindBySymbols returns authority records keyed by uppercased symbol. A
// symbol absent from the result matched nothing upstream.
func (c *authorityClientImpl) FindBySymbols(ctx context.Context, symbols []string) (map[string]entity.AuthorityRecord, error) {
	if len(symbols) == 0 {
		return map[string]entity.AuthorityRecord{}, nil
	}

	requestURL := fmt.Sprintf("%s/coins/list?symbols=%s&status=active",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	c.logger.Debug("Requesting authority registry lookup", zap.Int("symbolCount", len(symbols)))
	metrics.AuthorityLookupsTotal.Inc()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("authority lookup failed: %w", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("authority lookup failed: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("authority registry returned status %d", resp.StatusCode())
	}

	var coins []authorityCoin
	if err := json.Unmarshal(resp.Body(), &coins); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authority response: %w", err)
	}

	records := make(map[string]entity.AuthorityRecord, len(coins))
	for _, coin := range coins {
		key := strings.ToUpper(coin.Symbol)
		// First match wins; the authority orders entries by relevance.
		if _, exists := records[key]; exists {
			continue
		}
		records[key] = entity.AuthorityRecord{
			ID:       coin.ID,
			IsActive: coin.IsActive,
			Symbol:   coin.Symbol,
			Name:     coin.Name,
		}
	}
	return records, nil
}
