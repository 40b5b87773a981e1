package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Database   DatabaseConfig     `yaml:"database"`
	NATS       NATSConfig         `yaml:"nats"`
	Blockchain BlockchainConfig   `yaml:"blockchain"`
	Auction    AuctionConfig      `yaml:"auction"`
	Vault      VaultConfig        `yaml:"vault"`
	Tokens     TokenDecimalConfig `yaml:"tokens"`
	CORS       CORSConfig         `yaml:"cors"`
	Admin      AdminConfig        `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message broker configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"` // default "swap.orders"
}

// BlockchainConfig per-chain network configuration
type BlockchainConfig struct {
	Networks map[string]NetworkConfig `yaml:"networks"`
}

// NetworkConfig settings for one supported chain
type NetworkConfig struct {
	ChainID          int      `yaml:"chainId"`
	Name             string   `yaml:"name"`
	RPCEndpoints     []string `yaml:"rpcEndpoints"`
	EscrowFactory    string   `yaml:"escrowFactory"`  // deterministic escrow factory address
	EscrowInitCode   string   `yaml:"escrowInitCode"` // keccak256 of the escrow init code (hex)
	RelayerAddress   string   `yaml:"relayerAddress"` // relayer hot wallet address
	PrivateKey       string   `yaml:"privateKey"`     // hex, no 0x prefix
	GasLimit         uint64   `yaml:"gasLimit"`
	MinSafetyDeposit string   `yaml:"minSafetyDeposit"` // wei, collateral required per escrow
	Enabled          bool     `yaml:"enabled"`
}

// AuctionConfig Dutch auction and commitment settings
type AuctionConfig struct {
	CommitWindowSeconds  int    `yaml:"commitWindowSeconds"`  // default 300
	SweepIntervalSeconds int    `yaml:"sweepIntervalSeconds"` // rescue monitor tick, default 30
	DefaultSafetyFactor  string `yaml:"defaultSafetyFactor"`  // decimal string, default "0.95"
	MaxOrderDuration     int    `yaml:"maxOrderDuration"`     // seconds, default 3600
}

// VaultConfig secret vault settings
type VaultConfig struct {
	SealKey string `yaml:"sealKey"` // 32-byte hex key for sealing secrets at rest
}

// TokenDecimalConfig token decimal places per chain
type TokenDecimalConfig struct {
	DefaultDecimals int                    `yaml:"defaultDecimals"` // fallback, 18
	ChainDecimals   map[int]map[string]int `yaml:"chainDecimals"`   // chainId -> token address -> decimals
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access configuration
type AdminConfig struct {
	JWTSecret  string   `yaml:"jwtSecret"`
	AllowedIPs []string `yaml:"allowedIPs"`
}

var AppConfig *Config

// LoadConfig loads the configuration file and applies env overrides
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	fmt.Printf("✅ [%s] Loaded configuration from %s (%d networks)\n",
		time.Now().Format("2006-01-02 15:04:05"), configPath, len(config.Blockchain.Networks))

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Auction.CommitWindowSeconds <= 0 {
		config.Auction.CommitWindowSeconds = 300
	}
	if config.Auction.SweepIntervalSeconds <= 0 {
		config.Auction.SweepIntervalSeconds = 30
	}
	if config.Auction.DefaultSafetyFactor == "" {
		config.Auction.DefaultSafetyFactor = "0.95"
	}
	if config.Auction.MaxOrderDuration <= 0 {
		config.Auction.MaxOrderDuration = 3600
	}
	if config.Tokens.DefaultDecimals <= 0 {
		config.Tokens.DefaultDecimals = 18
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "swap.orders"
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if sealKey := os.Getenv("VAULT_SEAL_KEY"); sealKey != "" {
		config.Vault.SealKey = sealKey
	}
	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		config.Admin.JWTSecret = jwtSecret
	}
	if commitWindow := os.Getenv("COMMIT_WINDOW_SECONDS"); commitWindow != "" {
		if w, err := strconv.Atoi(commitWindow); err == nil {
			config.Auction.CommitWindowSeconds = w
		}
	}

	for networkName, networkConfig := range config.Blockchain.Networks {
		// Network-specific private key first (e.g. SEPOLIA_PRIVATE_KEY), then generic
		envPrivateKey := fmt.Sprintf("%s_PRIVATE_KEY", strings.ToUpper(networkName))
		if privateKey := os.Getenv(envPrivateKey); privateKey != "" {
			networkConfig.PrivateKey = privateKey
			fmt.Printf("✅ [Config] Loaded private key for network '%s' from %s\n", networkName, envPrivateKey)
		} else if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
			networkConfig.PrivateKey = privateKey
		}

		envRPC := fmt.Sprintf("%s_RPC_ENDPOINTS", strings.ToUpper(networkName))
		if rpcEndpoints := os.Getenv(envRPC); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = strings.Split(rpcEndpoints, ",")
		}

		envFactory := fmt.Sprintf("%s_ESCROW_FACTORY", strings.ToUpper(networkName))
		if factory := os.Getenv(envFactory); factory != "" {
			networkConfig.EscrowFactory = factory
		}

		envGasLimit := fmt.Sprintf("%s_GAS_LIMIT", strings.ToUpper(networkName))
		if gasLimit := os.Getenv(envGasLimit); gasLimit != "" {
			if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
				networkConfig.GasLimit = limit
			}
		}

		config.Blockchain.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns the configuration for a named network
func GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	network, exists := AppConfig.Blockchain.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}

	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}

	return &network, nil
}

// GetNetworkConfigByChainID returns the configuration for a chain id
func GetNetworkConfigByChainID(chainID int) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	for _, network := range AppConfig.Blockchain.Networks {
		if network.ChainID == chainID && network.Enabled {
			return &network, nil
		}
	}

	return nil, fmt.Errorf("network with chainID %d not found or disabled", chainID)
}

// GetTokenDecimals returns the decimal count for a token on a chain
func GetTokenDecimals(chainID int, token string) int {
	if AppConfig == nil {
		return 18
	}
	if perChain, ok := AppConfig.Tokens.ChainDecimals[chainID]; ok {
		if d, ok := perChain[strings.ToLower(token)]; ok {
			return d
		}
	}
	return AppConfig.Tokens.DefaultDecimals
}

// CommitWindow returns the resolver commitment window duration
func CommitWindow() time.Duration {
	if AppConfig == nil || AppConfig.Auction.CommitWindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(AppConfig.Auction.CommitWindowSeconds) * time.Second
}
