package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Registry     RegistryConfig     `yaml:"registry"`
	Verification VerificationConfig `yaml:"verification"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Authority    AuthorityConfig    `yaml:"authority"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Queue        QueueConfig        `yaml:"queue"`
	Portfolio    PortfolioConfig    `yaml:"portfolio"`
	RpcClient    RpcClientConfig    `yaml:"rpcClient"`
	Networks     []NetworkNode      `yaml:"networks"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// RedisConfig holds the optional distributed cache layer configuration.
// When disabled (or unreachable) the cache store runs memory-only.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// CacheConfig holds configuration for the shared cache store.
type CacheConfig struct {
	DefaultExpirationMinutes int `yaml:"defaultExpirationMinutes"`
	CleanupIntervalMinutes   int `yaml:"cleanupIntervalMinutes"`
	BalanceTTLSeconds        int `yaml:"balanceTTLSeconds"`
	// MaxConcurrentOps bounds concurrent distributed cache I/O (bulkhead).
	MaxConcurrentOps int `yaml:"maxConcurrentOps"`
}

// RegistryConfig holds the TTLs of the verification registry snapshots.
// Relative ordering metadata >= verified >= unlisted is enforced at load.
type RegistryConfig struct {
	MetadataTTLMinutes int `yaml:"metadataTTLMinutes"`
	VerifiedTTLMinutes int `yaml:"verifiedTTLMinutes"`
	UnlistedTTLMinutes int `yaml:"unlistedTTLMinutes"`
}

// VerificationConfig holds configuration for the token verification service.
type VerificationConfig struct {
	// MaxConcurrentLookups bounds concurrent authority lookups (bulkhead).
	MaxConcurrentLookups int   `yaml:"maxConcurrentLookups"`
	LookupTimeoutMillis  int64 `yaml:"lookupTimeoutMillis"`
	MaxSymbolsPerLookup  int   `yaml:"maxSymbolsPerLookup"`
}

// PricingConfig holds the configuration for the authoritative pricing client.
type PricingConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	APIKey                   string `yaml:"apiKey"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	RateLimit                int    `yaml:"rateLimit"`
	BurstLimit               int    `yaml:"burstLimit"`
}

// AuthorityConfig holds the configuration for the authoritative registry
// (symbol lookup) client.
type AuthorityConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// ProviderConfig holds the configuration of one upstream position provider.
type ProviderConfig struct {
	Enabled              bool   `yaml:"enabled"`
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// ProvidersConfig groups the upstream DeFi data sources.
type ProvidersConfig struct {
	Debank ProviderConfig `yaml:"debank"`
	Zerion ProviderConfig `yaml:"zerion"`
}

// QueueConfig holds the background metadata write queue configuration.
type QueueConfig struct {
	Capacity          int   `yaml:"capacity"`
	Workers           int   `yaml:"workers"`
	LatencyWarnMillis int64 `yaml:"latencyWarnMillis"`
	MaxRetries        int   `yaml:"maxRetries"`
}

// PortfolioConfig holds configuration for the portfolio service.
type PortfolioConfig struct {
	MaxConcurrentNetworks int   `yaml:"maxConcurrentNetworks"`
	FetchTimeoutMillis    int64 `yaml:"fetchTimeoutMillis"`
}

// RpcClientConfig holds configuration for EVM RPC clients.
type RpcClientConfig struct {
	ConnectTimeoutMs    int64 `yaml:"connectTimeoutMs"`
	CallTimeoutMs       int64 `yaml:"callTimeoutMs"`
	RateLimit           int   `yaml:"rateLimit"`
	BurstLimit          int   `yaml:"burstLimit"`
	MaxAddressesPerCall int   `yaml:"maxAddressesPerCall"`
}

// NetworkNode holds the configuration for one supported network.
type NetworkNode struct {
	Identifier        string `yaml:"identifier"` // canonical network id, e.g. "ethereum"
	Name              string `yaml:"name"`
	ChainID           int64  `yaml:"chainID"`
	Endpoint          string `yaml:"endpoint"`
	DebankChainID     string `yaml:"debankChainId"`
	ZerionChainID     string `yaml:"zerionChainId"`
	PricingPlatformID string `yaml:"pricingPlatformId"`
	NativeSymbol      string `yaml:"nativeSymbol"`
	NativeDecimals    uint8  `yaml:"nativeDecimals"`
	// WrappedNativeAddress, when set, is used as the pricing proxy for the
	// native coin (e.g. WETH for ETH). Prices obtained through it are
	// flagged as an approximation in the output.
	WrappedNativeAddress string `yaml:"wrappedNativeAddress"`
	LogoURL              string `yaml:"logoURL"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}

	if cfg.Cache.DefaultExpirationMinutes == 0 {
		cfg.Cache.DefaultExpirationMinutes = 10
	}
	if cfg.Cache.CleanupIntervalMinutes == 0 {
		cfg.Cache.CleanupIntervalMinutes = 10
	}
	if cfg.Cache.BalanceTTLSeconds == 0 {
		cfg.Cache.BalanceTTLSeconds = 30
	}
	if cfg.Cache.MaxConcurrentOps == 0 {
		cfg.Cache.MaxConcurrentOps = 64
	}

	if cfg.Registry.MetadataTTLMinutes == 0 {
		cfg.Registry.MetadataTTLMinutes = 24 * 60
	}
	if cfg.Registry.VerifiedTTLMinutes == 0 {
		cfg.Registry.VerifiedTTLMinutes = 12 * 60
	}
	if cfg.Registry.UnlistedTTLMinutes == 0 {
		cfg.Registry.UnlistedTTLMinutes = 60
	}
	// Registry data changes rarely; enforce metadata >= verified >= unlisted
	// by clamping upward rather than failing.
	if cfg.Registry.VerifiedTTLMinutes < cfg.Registry.UnlistedTTLMinutes {
		logrus.Warnf("verifiedTTLMinutes (%d) below unlistedTTLMinutes (%d), clamping", cfg.Registry.VerifiedTTLMinutes, cfg.Registry.UnlistedTTLMinutes)
		cfg.Registry.VerifiedTTLMinutes = cfg.Registry.UnlistedTTLMinutes
	}
	if cfg.Registry.MetadataTTLMinutes < cfg.Registry.VerifiedTTLMinutes {
		logrus.Warnf("metadataTTLMinutes (%d) below verifiedTTLMinutes (%d), clamping", cfg.Registry.MetadataTTLMinutes, cfg.Registry.VerifiedTTLMinutes)
		cfg.Registry.MetadataTTLMinutes = cfg.Registry.VerifiedTTLMinutes
	}

	if cfg.Verification.MaxConcurrentLookups == 0 {
		cfg.Verification.MaxConcurrentLookups = 8
	}
	if cfg.Verification.LookupTimeoutMillis == 0 {
		cfg.Verification.LookupTimeoutMillis = 5000
	}
	if cfg.Verification.MaxSymbolsPerLookup == 0 {
		cfg.Verification.MaxSymbolsPerLookup = 50
	}

	if cfg.Pricing.BaseURL == "" {
		cfg.Pricing.BaseURL = "https://api.coingecko.com/api/v3"
		logrus.Infof("Pricing.BaseURL not set, defaulting to %s", cfg.Pricing.BaseURL)
	}
	if cfg.Pricing.RequestTimeoutMillis == 0 {
		cfg.Pricing.RequestTimeoutMillis = 10000
	}
	if cfg.Pricing.MaxTokensPerBatchRequest == 0 {
		cfg.Pricing.MaxTokensPerBatchRequest = 100
		logrus.Infof("Pricing.MaxTokensPerBatchRequest not set, defaulting to %d", cfg.Pricing.MaxTokensPerBatchRequest)
	}
	if cfg.Pricing.RateLimit == 0 {
		cfg.Pricing.RateLimit = 5
	}
	if cfg.Pricing.BurstLimit == 0 {
		cfg.Pricing.BurstLimit = 10
	}

	if cfg.Authority.BaseURL == "" {
		cfg.Authority.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Authority.RequestTimeoutMillis == 0 {
		cfg.Authority.RequestTimeoutMillis = 10000
	}

	if cfg.Providers.Debank.BaseURL == "" {
		cfg.Providers.Debank.BaseURL = "https://pro-openapi.debank.com"
	}
	if cfg.Providers.Debank.RequestTimeoutMillis == 0 {
		cfg.Providers.Debank.RequestTimeoutMillis = 15000
	}
	if cfg.Providers.Zerion.BaseURL == "" {
		cfg.Providers.Zerion.BaseURL = "https://api.zerion.io/v1"
	}
	if cfg.Providers.Zerion.RequestTimeoutMillis == 0 {
		cfg.Providers.Zerion.RequestTimeoutMillis = 15000
	}

	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = 1024
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 2
	}
	if cfg.Queue.LatencyWarnMillis == 0 {
		cfg.Queue.LatencyWarnMillis = 5000
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}

	if cfg.Portfolio.MaxConcurrentNetworks == 0 {
		cfg.Portfolio.MaxConcurrentNetworks = 4
	}
	if cfg.Portfolio.FetchTimeoutMillis == 0 {
		cfg.Portfolio.FetchTimeoutMillis = 20000
	}

	if cfg.RpcClient.ConnectTimeoutMs == 0 {
		cfg.RpcClient.ConnectTimeoutMs = 10000
	}
	if cfg.RpcClient.CallTimeoutMs == 0 {
		cfg.RpcClient.CallTimeoutMs = 10000
	}
	if cfg.RpcClient.RateLimit == 0 {
		cfg.RpcClient.RateLimit = 10
	}
	if cfg.RpcClient.BurstLimit == 0 {
		cfg.RpcClient.BurstLimit = 20
	}
	if cfg.RpcClient.MaxAddressesPerCall == 0 {
		cfg.RpcClient.MaxAddressesPerCall = 20
	}
}

func validate(cfg *Config) error {
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}
	seen := make(map[string]struct{}, len(cfg.Networks))
	for i, n := range cfg.Networks {
		if n.Identifier == "" {
			return fmt.Errorf("networks[%d]: identifier is required", i)
		}
		id := strings.ToLower(n.Identifier)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("networks[%d]: duplicate identifier %q", i, n.Identifier)
		}
		seen[id] = struct{}{}
		if n.WrappedNativeAddress != "" {
			cfg.Networks[i].WrappedNativeAddress = strings.ToLower(n.WrappedNativeAddress)
		}
		if n.PricingPlatformID == "" {
			logrus.Warnf("Network %q is missing pricingPlatformId; authoritative pricing for this network will be skipped", n.Identifier)
		}
	}
	return nil
}

// NetworkByID returns the network node whose identifier matches (case
// insensitive), or false when the network is not configured.
func (c *Config) NetworkByID(identifier string) (NetworkNode, bool) {
	for _, n := range c.Networks {
		if strings.EqualFold(n.Identifier, identifier) {
			return n, true
		}
	}
	return NetworkNode{}, false
}
