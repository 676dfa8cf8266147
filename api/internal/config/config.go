package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	ServiceName = "Math Lens Backend"

	// openAIKeyTemplate is the value shipped in .env.example; it counts as unset.
	openAIKeyTemplate = "sk-your-openai-api-key-here"
)

// Version is reported by /health and the version command; set with -ldflags.
var Version = "1.0.0"

type Config struct {
	Port string `yaml:"port" env:"PORT" env-default:"3000" validate:"required,numeric"`
	Host string `yaml:"host" env:"HOST" env-default:"0.0.0.0"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json" validate:"oneof=json console"`

	MaxUploadBytes    int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"10485760" validate:"gt=0"`
	UploadDir         string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	MaxImageDimension int    `yaml:"max_image_dimension" env:"MAX_IMAGE_DIMENSION" env-default:"0" validate:"gte=0"`
	HEICEnabled       bool   `yaml:"heic_enabled" env:"HEIC_ENABLED" env-default:"true"`

	LLMProvider string `yaml:"llm_provider" env:"LLM_PROVIDER" env-default:"openai" validate:"oneof=openai gpt gemini"`

	OpenAIAPIKey    string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel     string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1/chat/completions" validate:"url"`
	OpenAIMaxTokens int    `yaml:"openai_max_tokens" env:"OPENAI_MAX_TOKENS" env-default:"1500" validate:"gt=0"`

	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	TelegramBotToken string `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"60s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"180s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// Load reads .env (if present), an optional config file and the environment,
// in that order of increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var err error
	if strings.TrimSpace(path) != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Prefer platform PORT env var, as hosting platforms inject it.
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = resolveDSN()
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// OpenAIConfigured reports whether a usable OpenAI key is present.
func (c *Config) OpenAIConfigured() bool {
	k := strings.TrimSpace(c.OpenAIAPIKey)
	return k != "" && k != openAIKeyTemplate
}

func (c *Config) GeminiConfigured() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// CredentialConfigured reports whether the selected provider has a credential.
func (c *Config) CredentialConfigured() bool {
	switch c.LLMProvider {
	case "gemini":
		return c.GeminiConfigured()
	default:
		return c.OpenAIConfigured()
	}
}

// resolveDSN builds a DSN from POSTGRES_* when DATABASE_URL is not set.
// An empty result disables the journal.
func resolveDSN() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "postgres")
	pass := os.Getenv("POSTGRES_PASSWORD")
	db := getEnv("POSTGRES_DB", "postgres")
	ssl := getEnv("POSTGRES_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	q := u.Query()
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return u.String()
}

// SafeDSNSummary returns host/db of a DSN without credentials, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "unparsable dsn"
	}
	return u.Host + u.Path
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
