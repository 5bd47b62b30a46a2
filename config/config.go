package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jimlawless/whereami"

	"monitor-precos/pkg/e"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string // opcional: sem token o bot de comandos não sobe
	TelegramChatID   int64  // opcional: restringe os comandos e recebe os alertas

	CheckInterval        time.Duration
	MaxConcurrentChecks  int
	FetchTimeout         time.Duration
	RateLimitPerMinute   int
	AllowPlaceholder     bool
	MaxConsecutiveErrors int // 0 nunca desativa produtos com falhas seguidas

	DatabasePath string
	DatabaseURL  string // postgres://... substitui o SQLite

	HTTPPort string
	LogLevel slog.Level

	Amazon  AmazonCfg
	Ebay    EbayCfg
	Walmart WalmartCfg
	BestBuy BestBuyCfg
	Target  TargetCfg

	SMTP     SMTPCfg
	Twilio   TwilioCfg
	Webhook  WebhookCfg
	Kafka    KafkaCfg
	Redis    RedisCfg
	Chat     ChatCfg
	Pushover PushoverCfg
}

type AmazonCfg struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
}

type EbayCfg struct {
	AppID string
}

type WalmartCfg struct {
	ClientID     string
	ClientSecret string
}

type BestBuyCfg struct {
	APIKey string
}

type TargetCfg struct {
	APIKey  string
	StoreID string
}

type SMTPCfg struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TwilioCfg struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type WebhookCfg struct {
	Secret string
}

// ChatCfg guarda os webhooks padrão do Discord e do Slack
type ChatCfg struct {
	DiscordWebhookURL string
	SlackWebhookURL   string
}

type PushoverCfg struct {
	AppToken string
	UserKey  string // destinatário padrão
}

type KafkaCfg struct {
	Brokers    []string
	AlertTopic string
}

type RedisCfg struct {
	URL      string
	PriceTTL time.Duration
}

// UsePostgres informa se DATABASE_URL aponta para um PostgreSQL
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Load carrega as configurações das variáveis de ambiente.
// O .env já deve ter sido lido pelo godotenv.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:     getEnvOrDefault("DATABASE_PATH", "./products.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HTTPPort:         getEnvOrDefault("HTTP_PORT", "8080"),
		AllowPlaceholder: parseBoolEnv("ALLOW_PLACEHOLDER_PRICES"),
	}

	// Chat ID é opcional
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, invalid("TELEGRAM_CHAT_ID", chatIDStr)
		}
		cfg.TelegramChatID = chatID
	}

	intervalSeconds, err := parsePositiveIntEnv("CHECK_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.CheckInterval = time.Duration(intervalSeconds) * time.Second

	if cfg.MaxConcurrentChecks, err = parsePositiveIntEnv("MAX_CONCURRENT_CHECKS", 4); err != nil {
		return nil, err
	}

	timeoutSeconds, err := parsePositiveIntEnv("FETCH_TIMEOUT_SECONDS", 20)
	if err != nil {
		return nil, err
	}
	cfg.FetchTimeout = time.Duration(timeoutSeconds) * time.Second

	// 0 desliga o limite
	if cfg.RateLimitPerMinute, err = parseIntEnv("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, invalid("RATE_LIMIT_PER_MINUTE", os.Getenv("RATE_LIMIT_PER_MINUTE"))
	}

	if cfg.MaxConsecutiveErrors, err = parseIntEnv("MAX_CONSECUTIVE_ERRORS", 10); err != nil {
		return nil, err
	}
	if cfg.MaxConsecutiveErrors < 0 {
		return nil, invalid("MAX_CONSECUTIVE_ERRORS", os.Getenv("MAX_CONSECUTIVE_ERRORS"))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "INFO"))); err != nil {
		return nil, invalid("LOG_LEVEL", os.Getenv("LOG_LEVEL"))
	}

	cfg.Amazon = AmazonCfg{
		AccessKey:  os.Getenv("AMAZON_ACCESS_KEY"),
		SecretKey:  os.Getenv("AMAZON_SECRET_KEY"),
		PartnerTag: os.Getenv("AMAZON_PARTNER_TAG"),
	}
	cfg.Ebay = EbayCfg{AppID: os.Getenv("EBAY_APP_ID")}
	cfg.Walmart = WalmartCfg{
		ClientID:     os.Getenv("WALMART_CLIENT_ID"),
		ClientSecret: os.Getenv("WALMART_CLIENT_SECRET"),
	}
	cfg.BestBuy = BestBuyCfg{APIKey: os.Getenv("BESTBUY_API_KEY")}
	cfg.Target = TargetCfg{
		APIKey:  os.Getenv("TARGET_API_KEY"),
		StoreID: os.Getenv("TARGET_STORE_ID"),
	}

	if cfg.SMTP, err = loadSMTPCfg(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cfg.Twilio = TwilioCfg{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}
	cfg.Webhook = WebhookCfg{Secret: os.Getenv("WEBHOOK_SECRET")}
	cfg.Kafka = KafkaCfg{
		Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		AlertTopic: os.Getenv("KAFKA_ALERT_TOPIC"),
	}

	cfg.Chat = ChatCfg{
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
	}
	cfg.Pushover = PushoverCfg{
		AppToken: os.Getenv("PUSHOVER_APP_TOKEN"),
		UserKey:  os.Getenv("PUSHOVER_USER_KEY"),
	}

	cfg.Redis.URL = os.Getenv("REDIS_URL")
	if cfg.Redis.PriceTTL, err = parseDurationEnv("PRICE_CACHE_TTL", time.Minute); err != nil {
		return nil, invalid("PRICE_CACHE_TTL", os.Getenv("PRICE_CACHE_TTL"))
	}

	return cfg, nil
}

func loadSMTPCfg() (SMTPCfg, error) {
	port, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return SMTPCfg{}, err
	}
	return SMTPCfg{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("FROM_EMAIL"),
	}, nil
}

// getEnvOrDefault retorna a variável de ambiente ou o valor padrão
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv lê uma duração ("90s", "5m") ou retorna o padrão
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}
	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, invalid(key, v)
	}
	return intValue, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	v, err := parseIntEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, invalid(key, os.Getenv(key))
	}
	return v, nil
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ErrInvalidEnv indica uma variável de ambiente com valor inválido
var ErrInvalidEnv = errors.New("variável de ambiente inválida")

func invalid(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, value)
}
