package restapi

import (
	"errors"
	"net/http"
	"strings"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIErrorResponse is the uniform error payload.
type APIErrorResponse struct {
	Error string `json:"error"`
}

// PortfolioHandler serves the portfolio and wallet balance read paths.
type PortfolioHandler struct {
	portfolioService    port.PortfolioService
	walletService       port.WalletBalanceService
	verificationService port.VerificationService
	logger              *zap.Logger
}

// NewPortfolioHandler creates the handler set.
func NewPortfolioHandler(
	ps port.PortfolioService,
	ws port.WalletBalanceService,
	vs port.VerificationService,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService:    ps,
		walletService:       ws,
		verificationService: vs,
		logger:              logger.Named("PortfolioHandler"),
	}
}

// GetPositionsHandler returns the single-network DeFi view for a wallet.
// GET /api/v1/portfolio/:wallet/positions?network=ethereum
func (h *PortfolioHandler) GetPositionsHandler(c *gin.Context) {
	wallet := c.Param("wallet")
	network := entity.Network(strings.ToLower(c.Query("network")))
	if network == "" {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "query parameter 'network' is required"})
		return
	}

	portfolio, err := h.portfolioService.GetPositions(c.Request.Context(), wallet, network)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

// GetAllPositionsHandler returns the multi-network aggregated view.
// GET /api/v1/portfolio/:wallet/positions/all?networks=ethereum,arbitrum
func (h *PortfolioHandler) GetAllPositionsHandler(c *gin.Context) {
	wallet := c.Param("wallet")

	var networks []entity.Network
	if raw := c.Query("networks"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.ToLower(strings.TrimSpace(id))
			if id != "" {
				networks = append(networks, entity.Network(id))
			}
		}
	}

	aggregated, err := h.portfolioService.GetMultiNetworkPositions(c.Request.Context(), wallet, networks)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, aggregated)
}

// GetBalancesHandler returns the plain wallet balances on one network.
// GET /api/v1/wallet/:wallet/balances?network=ethereum
func (h *PortfolioHandler) GetBalancesHandler(c *gin.Context) {
	wallet := c.Param("wallet")
	network := entity.Network(strings.ToLower(c.Query("network")))
	if network == "" {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "query parameter 'network' is required"})
		return
	}

	balances, err := h.walletService.GetBalances(c.Request.Context(), wallet, network)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// RecheckTokenHandler re-runs classification for a previously unlisted
// token. POST /api/v1/tokens/:network/:address/recheck?symbol=USDC
func (h *PortfolioHandler) RecheckTokenHandler(c *gin.Context) {
	network := entity.Network(strings.ToLower(c.Param("network")))
	address := c.Param("address")

	verdict, err := h.verificationService.Recheck(c.Request.Context(), network, entity.TokenRef{
		Address: address,
		Symbol:  c.Query("symbol"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": entity.CanonicalAddress(address),
		"network": network,
		"status":  verdict.Status(),
	})
}

func (h *PortfolioHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrUnsupportedNetwork), errors.Is(err, entity.ErrNoProviders):
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrRegistryUnavailable):
		c.JSON(http.StatusServiceUnavailable, APIErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusBadGateway, APIErrorResponse{Error: err.Error()})
	}
}
