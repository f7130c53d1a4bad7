package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultServerAddr       = ":8082"
	DefaultDevicePath       = "/socket-device/"
	DefaultControllerPath   = "/socket-controller/"
	DefaultAppPath          = "/socket-app/"
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 25 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultSendBufferSize   = 256
	DefaultMaxMessageBytes  = 1 << 20
	DefaultAuthIssuer       = "cognitive-hub"
	DefaultTokenTTL         = 24 * time.Hour
	DefaultSpeechRegion     = "eastus"
	DefaultSpeechLanguage   = "en-US"
	DefaultSpeechVoice      = "en-US-JennyNeural"
	DefaultOutputFormat     = "riff-16khz-16bit-mono-pcm"
	DefaultEOSTimeout       = 2 * time.Second
	DefaultMaxSpeechTimeout = 60 * time.Second
	DefaultNLUURL           = "http://localhost:8084"
	DefaultNLUClientID      = "hub-lima-client"
	DefaultNLUServiceType   = "luis"
	DefaultNLUAppName       = "luis/robo-dispatch"
	DefaultNLUEnvironment   = "environment"
	DefaultNLUTimeout       = 10 * time.Second
	DefaultSkillsFetch      = 10 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *HubConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.DevicePath == "" {
		c.Server.DevicePath = DefaultDevicePath
	}
	if c.Server.ControllerPath == "" {
		c.Server.ControllerPath = DefaultControllerPath
	}
	if c.Server.AppPath == "" {
		c.Server.AppPath = DefaultAppPath
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PongTimeout == 0 {
		c.Server.PongTimeout = DefaultPongTimeout
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = DefaultSendBufferSize
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}

	// Auth defaults
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultAuthIssuer
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	// Speech defaults
	if c.Speech.Region == "" {
		c.Speech.Region = DefaultSpeechRegion
	}
	if c.Speech.TokenEndpoint == "" {
		c.Speech.TokenEndpoint = "https://" + c.Speech.Region + ".api.cognitive.microsoft.com/sts/v1.0/issueToken"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = DefaultSpeechLanguage
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = DefaultSpeechVoice
	}
	if c.Speech.OutputFormat == "" {
		c.Speech.OutputFormat = DefaultOutputFormat
	}
	if c.Speech.EOSTimeout == 0 {
		c.Speech.EOSTimeout = DefaultEOSTimeout
	}
	if c.Speech.MaxSpeechTimeout == 0 {
		c.Speech.MaxSpeechTimeout = DefaultMaxSpeechTimeout
	}

	// NLU defaults
	if c.NLU.URL == "" {
		c.NLU.URL = DefaultNLUURL
	}
	if c.NLU.AuthURL == "" {
		c.NLU.AuthURL = strings.TrimSuffix(c.NLU.URL, "/") + "/auth"
	}
	if c.NLU.ClientID == "" {
		c.NLU.ClientID = DefaultNLUClientID
	}
	if c.NLU.ServiceType == "" {
		c.NLU.ServiceType = DefaultNLUServiceType
	}
	if c.NLU.AppName == "" {
		c.NLU.AppName = DefaultNLUAppName
	}
	if c.NLU.Environment == "" {
		c.NLU.Environment = DefaultNLUEnvironment
	}
	if c.NLU.Timeout == 0 {
		c.NLU.Timeout = DefaultNLUTimeout
	}

	// Skills defaults
	if c.Skills.Source == "" {
		c.Skills.Source = SkillsSourceStatic
	}
	if c.Skills.Arbitration == "" {
		c.Skills.Arbitration = ArbitrationAll
	}
	if c.Skills.FetchTimeout == 0 {
		c.Skills.FetchTimeout = DefaultSkillsFetch
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
