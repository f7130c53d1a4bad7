package config

import "time"

// HubConfig is the root configuration for a hub process.
type HubConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Speech   SpeechConfig   `yaml:"speech"`
	NLU      NLUConfig      `yaml:"nlu"`
	Skills   SkillsConfig   `yaml:"skills"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the socket server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	DevicePath      string        `yaml:"device_path"`
	ControllerPath  string        `yaml:"controller_path"`
	AppPath         string        `yaml:"app_path"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // Empty allows any origin
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	SendBufferSize  int           `yaml:"send_buffer_size"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret   string        `yaml:"secret"` // HMAC key for HS256 tokens
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"` // Lifetime of tokens minted by `hub token`
}

// SpeechConfig holds the Azure speech settings shared by ASR and TTS.
type SpeechConfig struct {
	SubscriptionKey  string        `yaml:"subscription_key"`
	Region           string        `yaml:"region"`
	TokenEndpoint    string        `yaml:"token_endpoint"`
	Language         string        `yaml:"language"`
	Voice            string        `yaml:"voice"`
	OutputFormat     string        `yaml:"output_format"`
	EOSTimeout       time.Duration `yaml:"eos_timeout"`
	MaxSpeechTimeout time.Duration `yaml:"max_speech_timeout"`
}

// NLUConfig holds the LIMA service settings.
type NLUConfig struct {
	URL         string        `yaml:"url"`
	AuthURL     string        `yaml:"auth_url"`
	AccountID   string        `yaml:"account_id"`
	Password    string        `yaml:"password"`
	ClientID    string        `yaml:"client_id"`
	ServiceType string        `yaml:"service_type"`
	AppName     string        `yaml:"app_name"`
	Environment string        `yaml:"environment"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"` // 0 disables retries
}

// SkillsConfig selects where the skills manifest comes from and how replies are arbitrated.
type SkillsConfig struct {
	Source         string        `yaml:"source"`        // "static", "file" or "postgres"
	ManifestPath   string        `yaml:"manifest_path"` // Required for source=file
	RemotePassword string        `yaml:"remote_password"`
	Arbitration    string        `yaml:"arbitration"` // "all" or "highest_priority"
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
}

// DatabaseConfig holds the optional manifest database.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Skill manifest sources.
const (
	SkillsSourceStatic   = "static"
	SkillsSourceFile     = "file"
	SkillsSourcePostgres = "postgres"
)

// Reply arbitration policies.
const (
	ArbitrationAll             = "all"
	ArbitrationHighestPriority = "highest_priority"
)
