package client

import (
	"fmt"
	"sync"
	"time"

	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
)

// evmClientProvider implements port.BlockchainClientProvider. Clients are
// dialed lazily and cached per network.
type evmClientProvider struct {
	cfg            *config.Config
	clients        map[entity.Network]port.BlockchainClient
	mu             sync.Mutex
	connectTimeout time.Duration
	callTimeout    time.Duration
	logger         *zap.Logger
}

// NewEVMClientProvider creates a provider over the configured networks.
func NewEVMClientProvider(cfg *config.Config, logger *zap.Logger) port.BlockchainClientProvider {
	return &evmClientProvider{
		cfg:            cfg,
		clients:        make(map[entity.Network]port.BlockchainClient),
		connectTimeout: time.Duration(cfg.RpcClient.ConnectTimeoutMs) * time.Millisecond,
		callTimeout:    time.Duration(cfg.RpcClient.CallTimeoutMs) * time.Millisecond,
		logger:         logger.Named("EVMClientProvider"),
	}
}

// GetClient returns the cached client for the network, dialing on first
// use.
func (p *evmClientProvider) GetClient(network entity.Network) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[network]; exists {
		return client, nil
	}

	node, ok := p.cfg.NetworkByID(network.String())
	if !ok {
		return nil, fmt.Errorf("network %s: %w", network, entity.ErrUnsupportedNetwork)
	}

	p.logger.Info("Creating new EVM client",
		zap.String("network", network.String()), zap.String("endpoint", node.Endpoint))

	newClient, err := NewEVMClient(node, p.connectTimeout, p.callTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client",
			zap.String("network", network.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", network, err)
	}

	p.clients[network] = newClient
	return newClient, nil
}
