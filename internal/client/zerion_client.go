package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"defi_portfolio/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ZerionClient fetches a wallet's flat position list from a Zerion-style
// API.
type ZerionClient interface {
	GetWalletPositions(ctx context.Context, wallet, chainID string) ([]entity.ZerionPositionData, error)
}

type zerionClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewZerionClient creates a Zerion API client.
func NewZerionClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) ZerionClient {
	return &zerionClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("ZerionClient"),
	}
}

type zerionEnvelope struct {
	Data []entity.ZerionPositionData `json:"data"`
}

func (c *zerionClientImpl) GetWalletPositions(ctx context.Context, wallet, chainID string) ([]entity.ZerionPositionData, error) {
	requestURL := fmt.Sprintf("%s/wallets/%s/positions/?filter[chain_ids]=%s&filter[positions]=only_complex",
		c.baseURL, url.PathEscape(wallet), url.QueryEscape(chainID))

	c.logger.Debug("Requesting wallet positions",
		zap.String("wallet", wallet), zap.String("chainID", chainID))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Basic "+c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("zerion request failed: %w", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("zerion request failed: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Zerion API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("chainID", chainID))
		return nil, fmt.Errorf("zerion API returned status %d", resp.StatusCode())
	}

	var envelope zerionEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zerion response: %w", err)
	}
	return envelope.Data, nil
}
