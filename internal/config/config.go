package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Chain    ChainConfig    `yaml:"chain"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Admin    AdminConfig    `yaml:"admin"`
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

// NATSConfig event bus configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"` // defaults to "bridge"
	Timeout       int    `yaml:"timeout"`        // seconds
}

// ChainConfig custody-side chain configuration
type ChainConfig struct {
	// Driver selects the custody backend: "erc20" talks to a chain over
	// RPC, "memory" keeps an in-process ledger for local development.
	Driver       string `yaml:"driver"`
	RPCEndpoint  string `yaml:"rpcEndpoint"`
	ChainID      int64  `yaml:"chainId"`
	OperatorKey  string `yaml:"operatorKey"` // hex private key, no 0x prefix
	GasLimit     uint64 `yaml:"gasLimit"`
	ConfirmTimeout int  `yaml:"confirmTimeout"` // seconds to wait for a receipt
}

// BridgeConfig relay engine parameters. Amounts are decimal strings in the
// asset's smallest unit.
type BridgeConfig struct {
	SourceChainID        uint64 `yaml:"sourceChainId"`
	ProtocolTag          string `yaml:"protocolTag"`
	Domain               string `yaml:"domain"`
	EscrowAccount        string `yaml:"escrowAccount"`
	AdminAddress         string `yaml:"adminAddress"`
	FeeBps               uint64 `yaml:"feeBps"`
	MinAmount            string `yaml:"minAmount"`
	MaxAmount            string `yaml:"maxAmount"`
	GlobalDailyCap       string `yaml:"globalDailyCap"`
	UserDailyCap         string `yaml:"userDailyCap"`
	WindowHours          int    `yaml:"windowHours"`
	MintDelaySeconds     int64  `yaml:"mintDelaySeconds"`
	TimelockDelaySeconds int64  `yaml:"timelockDelaySeconds"`
	MinValidators        int    `yaml:"minValidators"`
	Threshold            int    `yaml:"threshold"` // 0 means ceil(2/3 * minValidators)
}

// AdminConfig operator authentication configuration
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"` // bcrypt
	TOTPSecret   string `yaml:"totpSecret"`
	JWTSecret    string `yaml:"jwtSecret"`
	TokenTTLHours int   `yaml:"tokenTTLHours"`
}

var AppConfig *Config

// LoadConfig loads the YAML configuration file and applies environment
// overrides. An empty path falls back to config.yaml, preferring
// config.local.yaml when present.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("Using local configuration file: config.local.yaml")
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

	if err := validate(&config); err != nil {
		return err
	}

	AppConfig = &config
	return nil
}

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
	if rpc := os.Getenv("CHAIN_RPC_ENDPOINT"); rpc != "" {
		config.Chain.RPCEndpoint = rpc
	}
	if key := os.Getenv("CHAIN_OPERATOR_KEY"); key != "" {
		config.Chain.OperatorKey = key
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		config.Admin.PasswordHash = hash
	}
	if totp := os.Getenv("ADMIN_TOTP_SECRET"); totp != "" {
		config.Admin.TOTPSecret = totp
	}
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "bridge"
	}
	if config.Chain.Driver == "" {
		config.Chain.Driver = "erc20"
	}
	if config.Chain.GasLimit == 0 {
		config.Chain.GasLimit = 120_000
	}
	if config.Chain.ConfirmTimeout == 0 {
		config.Chain.ConfirmTimeout = 90
	}
	if config.Bridge.WindowHours == 0 {
		config.Bridge.WindowHours = 24
	}
	if config.Bridge.ProtocolTag == "" {
		config.Bridge.ProtocolTag = "XCHAIN_RELAY_V2"
	}
	if config.Admin.TokenTTLHours == 0 {
		config.Admin.TokenTTLHours = 24
	}
}

func validate(config *Config) error {
	if config.Bridge.MinValidators <= 0 {
		return fmt.Errorf("bridge.minValidators must be positive")
	}
	for _, field := range []struct {
		name, value string
	}{
		{"bridge.minAmount", config.Bridge.MinAmount},
		{"bridge.maxAmount", config.Bridge.MaxAmount},
		{"bridge.globalDailyCap", config.Bridge.GlobalDailyCap},
		{"bridge.userDailyCap", config.Bridge.UserDailyCap},
	} {
		if _, ok := new(big.Int).SetString(field.value, 10); !ok {
			return fmt.Errorf("%s: invalid amount %q", field.name, field.value)
		}
	}
	return nil
}

// Amount parses a configured decimal amount string.
func Amount(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

// WindowPeriod returns the rate-limit window as a duration.
func (b BridgeConfig) WindowPeriod() time.Duration {
	return time.Duration(b.WindowHours) * time.Hour
}
