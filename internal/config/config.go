// Package config handles application configuration loading from a YAML file, .env files and
// environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "englishapp/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Upstream LLM providers
	OpenAI    ProviderConfig `json:"openai" yaml:"openai"`
	Groq      ProviderConfig `json:"groq" yaml:"groq"`
	Gemini    ProviderConfig `json:"gemini" yaml:"gemini"`
	Anthropic ProviderConfig `json:"anthropic" yaml:"anthropic"`

	// Feature settings
	Chat       ChatConfig       `json:"chat" yaml:"chat"`
	Dictionary DictionaryConfig `json:"dictionary" yaml:"dictionary"`
	Quiz       QuizConfig       `json:"quiz" yaml:"quiz"`
	Speaking   SpeakingConfig   `json:"speaking" yaml:"speaking"`

	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// StaticDir holds the compiled single page app; index.html there answers unknown routes.
	StaticDir string `json:"static_dir" yaml:"static_dir"`
	// MaxBodyBytes caps request bodies (avatars arrive as base64 strings).
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// ProviderConfig holds credentials and endpoint for one upstream LLM API
type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
}

// Configured reports whether an API key is present
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// ChatConfig configures the conversational assistant and speaking practice backend
type ChatConfig struct {
	// Provider selects the chat backend: "openai" (any OpenAI compatible API) or "anthropic".
	Provider     string        `json:"provider" yaml:"provider"`
	SystemPrompt string        `json:"system_prompt" yaml:"system_prompt"`
	Temperature  float64       `json:"temperature" yaml:"temperature"`
	MaxTokens    int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// DictionaryConfig configures word lookups
type DictionaryConfig struct {
	TargetLanguage  string        `json:"target_language" yaml:"target_language"`
	APIVersions     []string      `json:"api_versions" yaml:"api_versions"`
	Temperature     float64       `json:"temperature" yaml:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens" yaml:"max_output_tokens"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
}

// QuizConfig configures quiz generation and the seeding policy
type QuizConfig struct {
	// SaturationThreshold is the stored question count per topic/level at which generation stops.
	SaturationThreshold int           `json:"saturation_threshold" yaml:"saturation_threshold"`
	BatchSize           int           `json:"batch_size" yaml:"batch_size"`
	DefaultTopic        string        `json:"default_topic" yaml:"default_topic"`
	DefaultLevel        string        `json:"default_level" yaml:"default_level"`
	Temperature         float64       `json:"temperature" yaml:"temperature"`
	Timeout             time.Duration `json:"timeout" yaml:"timeout"`
}

// SpeakingConfig configures speaking practice
type SpeakingConfig struct {
	DefaultTopic  string        `json:"default_topic" yaml:"default_topic"`
	QuestionCount int           `json:"question_count" yaml:"question_count"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "english-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// envFiles are loaded before environment overrides are applied. Variables already set in the
// process environment win.
var envFiles = []string{".env", "ai.env"}

// legacyEnvAliases maps variable names used by older deployments onto the reflected names.
var legacyEnvAliases = map[string]string{
	"PORT":              "SERVER_PORT",
	"OPENAI_MODEL_NAME": "OPENAI_MODEL",
	"GOOGLE_API_KEY":    "GEMINI_API_KEY",
	"SECRET_KEY":        "SERVER_SESSION_SECRET",
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load env files: %w", err)
	}
	applyLegacyAliases()

	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// loadEnvFiles reads KEY=VALUE files into the process environment, skipping missing files
func loadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "%s: %w", path, err)
		}
	}
	return nil
}

func applyLegacyAliases() {
	for legacy, current := range legacyEnvAliases {
		if os.Getenv(current) != "" {
			continue
		}
		if v := os.Getenv(legacy); v != "" {
			_ = os.Setenv(current, v)
		}
	}
}

// applyDefaults fills every zero value with its production default
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = DefaultStaticDir
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}

	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultOpenAIModel
	}
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = DefaultGroqBaseURL
	}
	if c.Groq.Model == "" {
		c.Groq.Model = DefaultGroqModel
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultGeminiModel
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = DefaultAnthropicModel
	}

	if c.Chat.Provider == "" {
		c.Chat.Provider = ChatProviderOpenAI
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = DefaultChatSystemPrompt
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = 0.7
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 300
	}
	if c.Chat.Timeout <= 0 {
		c.Chat.Timeout = ChatTimeout
	}

	if c.Dictionary.TargetLanguage == "" {
		c.Dictionary.TargetLanguage = DefaultDictionaryLanguage
	}
	if len(c.Dictionary.APIVersions) == 0 {
		c.Dictionary.APIVersions = []string{"v1beta", "v1"}
	}
	if c.Dictionary.Temperature == 0 {
		c.Dictionary.Temperature = 0.1
	}
	if c.Dictionary.MaxOutputTokens <= 0 {
		c.Dictionary.MaxOutputTokens = 1024
	}
	if c.Dictionary.Timeout <= 0 {
		c.Dictionary.Timeout = DictionaryTimeout
	}

	if c.Quiz.SaturationThreshold <= 0 {
		c.Quiz.SaturationThreshold = DefaultQuizSaturationThreshold
	}
	if c.Quiz.BatchSize <= 0 {
		c.Quiz.BatchSize = DefaultQuizBatchSize
	}
	if c.Quiz.DefaultTopic == "" {
		c.Quiz.DefaultTopic = DefaultQuizTopic
	}
	if c.Quiz.DefaultLevel == "" {
		c.Quiz.DefaultLevel = DefaultQuizLevel
	}
	if c.Quiz.Temperature == 0 {
		c.Quiz.Temperature = 0.9
	}
	if c.Quiz.Timeout <= 0 {
		c.Quiz.Timeout = QuizTimeout
	}

	if c.Speaking.DefaultTopic == "" {
		c.Speaking.DefaultTopic = DefaultSpeakingTopic
	}
	if c.Speaking.QuestionCount <= 0 {
		c.Speaking.QuestionCount = 3
	}
	if c.Speaking.Timeout <= 0 {
		c.Speaking.Timeout = SpeakingTimeout
	}

	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.Endpoint == "" {
		c.OpenTelemetry.Endpoint = "localhost:4317"
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix walks the struct and maps each yaml tag to an upper-case
// variable name, nested structs contributing their tag as a prefix (database.url -> DATABASE_URL).
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like SERVER_CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					for j := range parts {
						parts[j] = strings.TrimSpace(parts[j])
					}
					field.Set(reflect.ValueOf(parts))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by ENGLISH_CONFIG_FILE, or config.yaml.
// A missing default file yields an empty config; everything can come from the environment.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("ENGLISH_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
