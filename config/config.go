package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	LLM         LLMConfig         `yaml:"llm"`
	Chat        ChatConfig        `yaml:"chat"`
	Sponsor     SponsorConfig     `yaml:"sponsor"`
	Typing      TypingConfig      `yaml:"typing"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// MongoConfig 의 URI 는 MONGO_URI 환경변수가 있으면 그 값을 우선한다.
type MongoConfig struct {
	URI    string `yaml:"uri"`
	DBName string `yaml:"db_name"`
}

// KafkaConfig 는 분석 이벤트 발행 설정이다. BootstrapServers 가 비어 있으면 발행하지 않는다.
type KafkaConfig struct {
	BootstrapServers string `yaml:"bootstrap_servers"`
	ChatTopic        string `yaml:"chat_topic"`
}

// LLMConfig describes the completion backend. API keys are never read from the
// yaml file, only from the environment (see APIKeyEnv).
type LLMConfig struct {
	Provider      string        `yaml:"provider"`
	ModelName     string        `yaml:"model_name"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	MaxInputChars int           `yaml:"max_input_chars"`
	MaxTokens     int           `yaml:"max_tokens"`
}

type ChatConfig struct {
	ContextLimit    int           `yaml:"context_limit"`
	MaxMessageChars int           `yaml:"max_message_chars"`
	WelcomeMessage  string        `yaml:"welcome_message"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CountTokens     bool          `yaml:"count_tokens"`
}

type SponsorConfig struct {
	Probability float64         `yaml:"probability"`
	Countdown   time.Duration   `yaml:"countdown"`
	Static      []StaticSponsor `yaml:"static"`
}

// StaticSponsor is a sponsored item served without the record store.
type StaticSponsor struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	LinkURL     string    `yaml:"link_url"`
	ImageURL    string    `yaml:"image_url"`
	StartDate   time.Time `yaml:"start_date"`
	EndDate     time.Time `yaml:"end_date"`
	IsActive    bool      `yaml:"is_active"`
}

type TypingConfig struct {
	Disabled bool `yaml:"disabled"`
}

type SuggestionsConfig struct {
	Count    int           `yaml:"count"`
	Timeout  time.Duration `yaml:"timeout"`
	Fallback []string      `yaml:"fallback"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	c, err := Load(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}
	config = c
}

// Load reads a config file and fills every unset value with its default.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*AppConfig, error) {
	var c AppConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

// SetConfig replaces the global config. Used by tests and the terminal client.
func SetConfig(c AppConfig) {
	config = &c
}

func Default() AppConfig {
	var c AppConfig
	c.applyDefaults()
	return c
}

func (c *AppConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Mongo.DBName == "" {
		c.Mongo.DBName = "toolhub"
	}
	if c.Kafka.ChatTopic == "" {
		c.Kafka.ChatTopic = "toolhub.chat.events"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGoogle
	}
	if c.LLM.ModelName == "" {
		c.LLM.ModelName = "gemini-2.5-flash"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 25 * time.Second
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.MaxInputChars <= 0 {
		c.LLM.MaxInputChars = 8000
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.Chat.ContextLimit <= 0 {
		c.Chat.ContextLimit = 10
	}
	if c.Chat.MaxMessageChars <= 0 {
		c.Chat.MaxMessageChars = 1000
	}
	if c.Chat.WelcomeMessage == "" {
		c.Chat.WelcomeMessage = "Hi! How can I help you today?"
	}
	if c.Chat.SessionTTL <= 0 {
		c.Chat.SessionTTL = 30 * time.Minute
	}
	if c.Sponsor.Probability == 0 {
		c.Sponsor.Probability = 0.7
	}
	if c.Sponsor.Countdown <= 0 {
		c.Sponsor.Countdown = 10 * time.Second
	}
	if c.Suggestions.Count <= 0 {
		c.Suggestions.Count = 3
	}
	if c.Suggestions.Timeout <= 0 {
		c.Suggestions.Timeout = 10 * time.Second
	}
	if len(c.Suggestions.Fallback) == 0 {
		c.Suggestions.Fallback = []string{
			"Tell me more",
			"Can you give an example?",
			"What else can you do?",
		}
	}
}

// applyEnv overlays connection settings that are allowed to come from the environment.
func (c *AppConfig) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		c.Kafka.BootstrapServers = v
	}
	if v := os.Getenv("COMPLETION_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
}

func (c AppConfig) Validate() error {
	switch c.LLM.Provider {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderHTTP:
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderHTTP && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for provider %q", ProviderHTTP)
	}
	if c.Sponsor.Probability < 0 || c.Sponsor.Probability > 1 {
		return fmt.Errorf("sponsor.probability must be within [0, 1], got %v", c.Sponsor.Probability)
	}
	return nil
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
