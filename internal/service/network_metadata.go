package service

import (
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"
)

// configNetworkMetadata serves static per-network reference data straight
// from configuration. It never changes at runtime, so no TTL is involved.
type configNetworkMetadata struct {
	logos map[entity.Network]string
}

// NewNetworkMetadataLookup builds the lookup from the configured networks.
func NewNetworkMetadataLookup(cfg *config.Config) port.NetworkMetadataLookup {
	logos := make(map[entity.Network]string, len(cfg.Networks))
	for _, node := range cfg.Networks {
		if node.LogoURL != "" {
			logos[entity.Network(node.Identifier)] = node.LogoURL
		}
	}
	return &configNetworkMetadata{logos: logos}
}

func (m *configNetworkMetadata) GetLogo(network entity.Network) (string, bool) {
	logo, ok := m.logos[network]
	return logo, ok
}
