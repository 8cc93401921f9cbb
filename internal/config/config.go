package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"32"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Transcription providers. A provider with no URL/key configured is
	// simply absent from the registry.
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"120s"`
	WhisperURL        string        `env:"WHISPER_URL"`
	WhisperModel      string        `env:"WHISPER_MODEL" envDefault:"base"`
	HuggingFaceAPIKey string        `env:"HF_API_KEY"`
	HuggingFaceModel  string        `env:"HF_MODEL" envDefault:"openai/whisper-large-v3"`
	DeepInfraAPIKey   string        `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel    string        `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`
	AssemblyAIAPIKey  string        `env:"ASSEMBLYAI_API_KEY"`

	// Coaching feedback LLM (OpenAI-compatible). Empty URL disables it.
	FeedbackURL     string        `env:"FEEDBACK_URL"`
	FeedbackAPIKey  string        `env:"FEEDBACK_API_KEY"`
	FeedbackModel   string        `env:"FEEDBACK_MODEL" envDefault:"gpt-4o-mini"`
	FeedbackTimeout time.Duration `env:"FEEDBACK_TIMEOUT" envDefault:"60s"`

	LexiconFile string `env:"LEXICON_FILE"`

	AudioDir string `env:"AUDIO_DIR" envDefault:"./audio"`
	S3       S3Config

	// Optional MQTT broker for completion notifications to mobile clients.
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"coach-engine"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`
}

// S3Config configures the optional S3 audio archive.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether an S3 bucket is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// Load reads configuration from a .env file (silent if missing) and
// environment variables.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WhisperURL == "" && c.HuggingFaceAPIKey == "" &&
		c.DeepInfraAPIKey == "" && c.AssemblyAIAPIKey == "" {
		return fmt.Errorf("no transcription provider configured: set at least one of WHISPER_URL, HF_API_KEY, DEEPINFRA_API_KEY, ASSEMBLYAI_API_KEY")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}
