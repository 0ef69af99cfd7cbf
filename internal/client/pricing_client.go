package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// pricingClientImpl fetches authoritative token prices from a
// CoinGecko-compatible endpoint, one batched call per request.
type pricingClientImpl struct {
	client    *fasthttp.Client
	baseURL   string
	apiKey    string
	timeout   time.Duration
	platforms map[entity.Network]string // network -> pricing platform id
	logger    *zap.Logger
}

// NewPricingClient creates a pricing client. platforms maps canonical
// network identifiers to the pricing source's platform ids; networks
// absent from the map are unsupported.
func NewPricingClient(baseURL, apiKey string, timeout time.Duration, platforms map[entity.Network]string, logger *zap.Logger) port.PricingClient {
	return &pricingClientImpl{
		client:    &fasthttp.Client{},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		timeout:   timeout,
		platforms: platforms,
		logger:    logger.Named("PricingClient"),
	}
}

// FetchPrices fetches USD prices for a batch of contract addresses.
// Addresses missing from the response are returned as structured failures,
// never as zero prices.
func (c *pricingClientImpl) FetchPrices(ctx context.Context, network entity.Network, addresses []string) (map[string]float64, []entity.PriceFailure, error) {
	if len(addresses) == 0 {
		return map[string]float64{}, nil, nil
	}
	platform, ok := c.platforms[network]
	if !ok || platform == "" {
		return nil, nil, fmt.Errorf("pricing: %w: %s", entity.ErrUnsupportedNetwork, network)
	}

	requestURL := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		c.baseURL, url.PathEscape(platform), url.QueryEscape(strings.Join(addresses, ",")))

	c.logger.Debug("Requesting token prices",
		zap.String("network", network.String()),
		zap.Int("addressCount", len(addresses)))

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
			return nil, nil, fmt.Errorf("pricing request failed: %w", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, nil, fmt.Errorf("pricing request failed: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Pricing API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("network", network.String()))
		return nil, nil, fmt.Errorf("pricing API returned status %d", resp.StatusCode())
	}

	// Response shape: {"0xabc...": {"usd": 1.001}, ...}
	var payload map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal pricing response: %w", err)
	}

	prices := make(map[string]float64, len(payload))
	var failures []entity.PriceFailure
	for _, addr := range addresses {
		canonical := entity.CanonicalAddress(addr)
		entry, ok := payload[canonical]
		if !ok {
			failures = append(failures, entity.PriceFailure{
				Network: network,
				Address: canonical,
				Reason:  "no price returned",
			})
			continue
		}
		usd, ok := entry["usd"]
		if !ok {
			failures = append(failures, entity.PriceFailure{
				Network: network,
				Address: canonical,
				Reason:  "no usd quote",
			})
			continue
		}
		prices[canonical] = usd
	}
	return prices, failures, nil
}
