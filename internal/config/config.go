package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDemoWallet  = "0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"
	DefaultJudgeWallet = "0x0eaa75FfdadCdb688E1055154818fE1dB0718bab"
	DefaultUSDC        = "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
	DefaultExplorer    = "https://sepolia.etherscan.io"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	LogLevel       string

	// Audit log storage. DatabaseURL wins over AuditLogFile.
	DatabaseURL   string
	AuditLogFile  string
	LogMaxEntries int

	AlertCheckSchedule string
	AlertMaxEntries    int
	AlertUsers         []string

	ChainRPCURL   string
	USDCContract  string
	DemoWallet    string
	JudgeWallet   string
	BackupWallet  string
	ExplorerURL   string
	OutboundProxy string

	CircleAPIKey     string
	CircleBaseURL    string
	CircleBlockchain string

	StripeSecretKey   string
	StripeBaseURL     string
	StripeMappingFile string

	MockPrices    bool
	PriceCacheTTL time.Duration

	AgentMode    string
	AgentURL     string
	AgentTimeout time.Duration

	MetricsUser     string
	MetricsPassword string

	RateLimitRPS   int
	RateLimitBurst int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Warning: .env file not found")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8000"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AuditLogFile:       os.Getenv("AUDIT_LOG_FILE"),
		LogMaxEntries:      getInt("LOG_MAX_ENTRIES", 1000),
		AlertCheckSchedule: getEnv("ALERT_CHECK_SCHEDULE", "@every 30s"),
		AlertMaxEntries:    getInt("ALERT_MAX_ENTRIES", 200),
		AlertUsers:         splitList(getEnv("ALERT_USERS", "user1,user2,user3")),
		ChainRPCURL:        os.Getenv("CHAIN_RPC_URL"),
		USDCContract:       getEnv("USDC_CONTRACT", DefaultUSDC),
		DemoWallet:         getEnv("DEMO_WALLET_ADDRESS", DefaultDemoWallet),
		JudgeWallet:        getEnv("JUDGE_WALLET_ADDRESS", DefaultJudgeWallet),
		BackupWallet:       getEnv("BACKUP_WALLET_ADDRESS", DefaultJudgeWallet),
		ExplorerURL:        getEnv("EXPLORER_URL", DefaultExplorer),
		OutboundProxy:      os.Getenv("OUTBOUND_PROXY"),
		CircleAPIKey:       os.Getenv("CIRCLE_API_KEY"),
		CircleBaseURL:      getEnv("CIRCLE_BASE_URL", "https://api-sandbox.circle.com"),
		CircleBlockchain:   getEnv("CIRCLE_BLOCKCHAIN", "ETH-SEPOLIA"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:      getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripeMappingFile:  getEnv("STRIPE_MAPPING_FILE", "stripe_mapping.json"),
		MockPrices:         getBool("MOCK_PRICES", false),
		PriceCacheTTL:      getDuration("PRICE_CACHE_TTL", 60*time.Second),
		AgentMode:          getEnv("AGENT_MODE", "auto"),
		AgentURL:           os.Getenv("AGENT_URL"),
		AgentTimeout:       getDuration("AGENT_TIMEOUT", 30*time.Second),
		MetricsUser:        getEnv("METRICS_USER", "metrics"),
		MetricsPassword:    os.Getenv("METRICS_PASSWORD"),
		RateLimitRPS:       getInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 40),
	}

	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.LogMaxEntries <= 0 {
		return errors.Errorf("LOG_MAX_ENTRIES must be positive, got %d", c.LogMaxEntries)
	}
	if c.AlertMaxEntries <= 0 {
		return errors.Errorf("ALERT_MAX_ENTRIES must be positive, got %d", c.AlertMaxEntries)
	}
	switch c.AgentMode {
	case "auto", "api", "mock":
	default:
		return errors.Errorf("AGENT_MODE must be auto, api or mock, got %q", c.AgentMode)
	}
	if c.AgentMode == "api" && c.AgentURL == "" {
		return errors.New("AGENT_URL is required when AGENT_MODE=api")
	}
	return nil
}

// ClientConfig configures the headless dashboard.
type ClientConfig struct {
	APIURL        string
	UserID        string
	AlertPoll     string
	BalancePoll   string
	LogPoll       string
	ConfirmDelay  time.Duration
	WalletAddress string
	Timeout       time.Duration
}

func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		APIURL:        strings.TrimRight(getEnv("DASH_API_URL", "http://127.0.0.1:8000/api"), "/"),
		UserID:        getEnv("DASH_USER", "user1"),
		AlertPoll:     getEnv("DASH_ALERT_POLL", "@every 15s"),
		BalancePoll:   getEnv("DASH_BALANCE_POLL", "@every 30s"),
		LogPoll:       getEnv("DASH_LOG_POLL", "@every 15s"),
		ConfirmDelay:  getDuration("DASH_CONFIRM_DELAY", 1200*time.Millisecond),
		WalletAddress: getEnv("DEMO_WALLET_ADDRESS", DefaultDemoWallet),
		Timeout:       getDuration("DASH_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using %s", v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
