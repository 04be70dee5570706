package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           string `env:"PORT"               envDefault:"5200"`
	DatabaseURL    string `env:"DATABASE_URL"`
	ServiceToken   string `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"    envDefault:"http://localhost:3000"`
	LogLevel       string `env:"LOG_LEVEL"          envDefault:"info"`

	// Optional remote auth; when empty tokens are checked against the player table.
	AuthServiceURL   string `env:"AUTH_SERVICE_URL"`
	AuthServiceToken string `env:"AUTH_SERVICE_TOKEN"`

	// Applies to every outbound call: auth service and player sync.
	HTTPClientTimeoutSecond int `env:"HTTP_CLIENT_TIMEOUT_SECOND" envDefault:"10"`

	MaxPowerDifference       int64  `env:"PVP_MAX_POWER_DIFFERENCE"        envDefault:"2000"`
	QueueTimeoutSecond       int    `env:"PVP_QUEUE_TIMEOUT_SECOND"        envDefault:"60"`
	QueueSweepIntervalSecond int    `env:"PVP_QUEUE_SWEEP_INTERVAL_SECOND" envDefault:"30"`
	TurnTimeoutSecond        int    `env:"PVP_TURN_TIMEOUT_SECOND"         envDefault:"30"`
	InviteTimeoutSecond      int    `env:"PVP_INVITE_TIMEOUT_SECOND"       envDefault:"60"`
	DefaultMode              string `env:"PVP_DEFAULT_MODE"                envDefault:"realtime"`
	AttackValidation         string `env:"PVP_ATTACK_VALIDATION"           envDefault:"trust"`

	// Optional mirror of players registered on the main game server.
	PlayerSyncURL            string `env:"PLAYER_SYNC_URL"`
	PlayerSyncIntervalSecond int    `env:"PLAYER_SYNC_INTERVAL_SECOND" envDefault:"60"`

	SettlementQueueSize   int `env:"SETTLEMENT_QUEUE_SIZE"   envDefault:"256"`
	SettlementMaxAttempts int `env:"SETTLEMENT_MAX_ATTEMPTS" envDefault:"5"`

	R2 R2Config
}

// R2Config holds the battle report archive settings. An empty bucket disables archiving.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

func (c R2Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv parses the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, eris.Wrap(err, "unable to parse environment variables")
	}
	if err := env.Parse(&cfg.R2); err != nil {
		return nil, eris.Wrap(err, "unable to parse R2 environment variables")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxPowerDifference < 0 {
		return eris.New("PVP_MAX_POWER_DIFFERENCE must be >= 0")
	}
	if c.QueueTimeoutSecond <= 0 || c.QueueSweepIntervalSecond <= 0 {
		return eris.New("queue timeout and sweep interval must be > 0")
	}
	if c.TurnTimeoutSecond <= 0 || c.InviteTimeoutSecond <= 0 {
		return eris.New("turn and invite timeouts must be > 0")
	}
	if c.HTTPClientTimeoutSecond <= 0 {
		return eris.New("HTTP_CLIENT_TIMEOUT_SECOND must be > 0")
	}
	switch c.AttackValidation {
	case "trust", "bounded":
	default:
		return eris.Errorf("unknown PVP_ATTACK_VALIDATION %q", c.AttackValidation)
	}
	if c.SettlementQueueSize <= 0 {
		c.SettlementQueueSize = 1
	}
	if c.SettlementMaxAttempts <= 0 {
		c.SettlementMaxAttempts = 1
	}
	return nil
}

func (c *Config) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSecond) * time.Second
}

func (c *Config) QueueSweepInterval() time.Duration {
	return time.Duration(c.QueueSweepIntervalSecond) * time.Second
}

func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSecond) * time.Second
}

func (c *Config) PlayerSyncInterval() time.Duration {
	return time.Duration(c.PlayerSyncIntervalSecond) * time.Second
}

func (c *Config) InviteTimeout() time.Duration {
	return time.Duration(c.InviteTimeoutSecond) * time.Second
}

func (c *Config) HTTPClientTimeout() time.Duration {
	return time.Duration(c.HTTPClientTimeoutSecond) * time.Second
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (c *Config) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if o := strings.TrimSpace(origin); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SetupLogging applies LOG_LEVEL to the standard logrus logger.
func (c *Config) SetupLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("invalid LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
