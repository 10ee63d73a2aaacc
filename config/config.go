package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env            string
	LogLevel       string
	DatabaseURL    string
	HTTPAddr       string
	GatewayToken   string
	AllowedOrigins string

	Scheduler SchedulerConfig
	Challenge ChallengeConfig
	Judge     JudgeConfig
	Redis     RedisConfig
	NATS      NATSConfig
	R2        R2Config
}

type SchedulerConfig struct {
	ChallengeInterval time.Duration
	ArenaInterval     time.Duration
	ReconcileInterval time.Duration
}

type ChallengeConfig struct {
	SupportedLengths []int
	MinParticipants  int
	MaxParticipants  int
	QueryTimeout     time.Duration
	FanOut           int
}

type JudgeConfig struct {
	BaseURL    string
	CatalogTTL time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	HandleTTL time.Duration
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":5200")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("CHALLENGE_TICK_INTERVAL", "30s")
	v.SetDefault("ARENA_TICK_INTERVAL", "60s")
	v.SetDefault("RECONCILE_INTERVAL", "5m")
	v.SetDefault("SUPPORTED_LENGTHS", "40,60,80")
	v.SetDefault("MIN_PARTICIPANTS", 1)
	v.SetDefault("MAX_PARTICIPANTS", 5)
	v.SetDefault("QUERY_TIMEOUT", "15s")
	v.SetDefault("FAN_OUT", 4)
	v.SetDefault("JUDGE_BASE_URL", "https://codeforces.com/api")
	v.SetDefault("PROBLEM_CATALOG_TTL", "6h")
	v.SetDefault("REDIS_HANDLE_TTL", "10m")
	v.SetDefault("NATS_SUBJECT_PREFIX", "duel.summary")
}

// Load reads an optional .env file, then DUEL_-prefixed environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DUEL")
	v.AutomaticEnv()
	setDefaults(v)

	lengths, err := parseInts(v.GetString("SUPPORTED_LENGTHS"))
	if err != nil {
		return nil, fmt.Errorf("DUEL_SUPPORTED_LENGTHS: %w", err)
	}

	cfg := &Config{
		Env:            v.GetString("ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		GatewayToken:   v.GetString("GATEWAY_TOKEN"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
		Scheduler: SchedulerConfig{
			ChallengeInterval: v.GetDuration("CHALLENGE_TICK_INTERVAL"),
			ArenaInterval:     v.GetDuration("ARENA_TICK_INTERVAL"),
			ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		},
		Challenge: ChallengeConfig{
			SupportedLengths: lengths,
			MinParticipants:  v.GetInt("MIN_PARTICIPANTS"),
			MaxParticipants:  v.GetInt("MAX_PARTICIPANTS"),
			QueryTimeout:     v.GetDuration("QUERY_TIMEOUT"),
			FanOut:           v.GetInt("FAN_OUT"),
		},
		Judge: JudgeConfig{
			BaseURL:    v.GetString("JUDGE_BASE_URL"),
			CatalogTTL: v.GetDuration("PROBLEM_CATALOG_TTL"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			HandleTTL: v.GetDuration("REDIS_HANDLE_TTL"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("NATS_URL"),
			SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		},
		R2: R2Config{
			AccountID:       v.GetString("R2_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET"),
			Endpoint:        v.GetString("R2_ENDPOINT"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DUEL_DATABASE_URL is required")
	}
	if c.GatewayToken == "" {
		return fmt.Errorf("DUEL_GATEWAY_TOKEN is required")
	}
	if len(c.Challenge.SupportedLengths) == 0 {
		return fmt.Errorf("at least one supported challenge length is required")
	}
	if c.Challenge.MinParticipants < 1 || c.Challenge.MaxParticipants < c.Challenge.MinParticipants {
		return fmt.Errorf("invalid participant bounds %d..%d", c.Challenge.MinParticipants, c.Challenge.MaxParticipants)
	}
	return nil
}

// R2Enabled reports whether recap archiving is configured.
func (c *Config) R2Enabled() bool {
	return c.R2.Bucket != "" && c.R2.AccessKeyID != "" && (c.R2.AccountID != "" || c.R2.Endpoint != "")
}

func parseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
