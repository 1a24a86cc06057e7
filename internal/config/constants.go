package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout = 60 * time.Second
	ShutdownTimeout    = 30 * time.Second
	TestTimeout        = 100 * time.Millisecond

	// Upstream LLM timeouts
	ChatTimeout       = 25 * time.Second
	SpeakingTimeout   = 25 * time.Second
	DictionaryTimeout = 30 * time.Second
	QuizTimeout       = 50 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 280 * time.Second
	DatabasePingTimeout     = 5 * time.Second

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Server defaults
const (
	DefaultPort         = "8000"
	DefaultStaticDir    = "static"
	DefaultMaxBodyBytes = 16 << 20
	DefaultServiceName  = "english-backend"
)

// Upstream provider defaults
const (
	ChatProviderOpenAI    = "openai"
	ChatProviderAnthropic = "anthropic"

	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultGroqModel      = "llama-3.3-70b-versatile"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Feature defaults
const (
	DefaultChatSystemPrompt        = "Bạn là trợ giảng lịch thiệp, trả lời ngắn gọn, rõ ràng."
	DefaultDictionaryLanguage      = "Vietnamese"
	DefaultQuizSaturationThreshold = 800
	DefaultQuizBatchSize           = 20
	DefaultQuizTopic               = "General English"
	DefaultQuizLevel               = "Intermediate"
	DefaultSpeakingTopic           = "daily life"
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName    = "english-session"
	SessionUserKey = "user_id"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline' 'wasm-unsafe-eval'; img-src 'self' data: blob:; media-src 'self' blob: data:; connect-src 'self' https:; font-src 'self' data: https:;"
)
