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

// DebankClient fetches a wallet's raw protocol positions from a
// DeBank-style API. The payload is provider-native; mapping and grouping
// happen in the adapter.
type DebankClient interface {
	GetComplexProtocolList(ctx context.Context, wallet, chainID string) ([]entity.DebankProtocol, error)
}

type debankClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDebankClient creates a DeBank API client.
func NewDebankClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) DebankClient {
	return &debankClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("DebankClient"),
	}
}

func (c *debankClientImpl) GetComplexProtocolList(ctx context.Context, wallet, chainID string) ([]entity.DebankProtocol, error) {
	requestURL := fmt.Sprintf("%s/v1/user/complex_protocol_list?id=%s&chain_id=%s",
		c.baseURL, url.QueryEscape(wallet), url.QueryEscape(chainID))

	c.logger.Debug("Requesting complex protocol list",
		zap.String("wallet", wallet), zap.String("chainID", chainID))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	if c.apiKey != "" {
		req.Header.Set("AccessKey", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("debank request failed: %w", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("debank request failed: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("DeBank API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("chainID", chainID))
		return nil, fmt.Errorf("debank API returned status %d", resp.StatusCode())
	}

	var protocols []entity.DebankProtocol
	if err := json.Unmarshal(resp.Body(), &protocols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal debank response: %w", err)
	}
	return protocols, nil
}
