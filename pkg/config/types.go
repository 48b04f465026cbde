package config

import "time"

// ObjectMeta is a simplified metadata structure for manifests.
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// Manifest is the on-disk document.
type Manifest struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Config     `yaml:"spec"`
}

// Config is the interview server configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Interview InterviewConfig   `yaml:"interview"`
	VAD       VADConfig         `yaml:"vad"`
	Dialogue  DialogueConfig    `yaml:"dialogue"`
	Analysis  AnalysisConfig    `yaml:"analysis"`
	Storage   StorageConfig     `yaml:"storage"`
	Records   RecordsConfig     `yaml:"records"`
	Supabase  SupabaseConfig    `yaml:"supabase"`
	Redis     RedisConfig       `yaml:"redis"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
	Logging   LoggingConfigSpec `yaml:"logging"`

	// Name is copied from metadata.name.
	Name string `yaml:"-"`
	// ConfigDir is the directory of the loaded file, used to resolve
	// relative paths.
	ConfigDir string `yaml:"-"`
}

// ServerConfig configures the HTTP listener and the WebSocket bridge.
type ServerConfig struct {
	Addr              string        `yaml:"addr,omitempty"`
	AllowedOrigins    []string      `yaml:"allowedOrigins,omitempty"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout,omitempty"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout,omitempty"`

	// HandshakeTimeout bounds the wait for the client's hello frame.
	HandshakeTimeout  time.Duration `yaml:"handshakeTimeout,omitempty"`
	PongWait          time.Duration `yaml:"pongWait,omitempty"`
	MaxMessageBytes   int64         `yaml:"maxMessageBytes,omitempty"`
	MessagesPerSecond float64       `yaml:"messagesPerSecond,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	CaptureTimeout    time.Duration `yaml:"captureTimeout,omitempty"`

	// ResultsPath prefixes record ids in navigate messages.
	ResultsPath string `yaml:"resultsPath,omitempty"`
	// RecordingsPath is where locally stored recordings are served.
	RecordingsPath string `yaml:"recordingsPath,omitempty"`
}

// InterviewConfig holds per-session policy.
type InterviewConfig struct {
	Duration        time.Duration `yaml:"duration,omitempty"`
	MinWidth        int           `yaml:"minWidth,omitempty"`
	MinHeight       int           `yaml:"minHeight,omitempty"`
	AllowedSurfaces []string      `yaml:"allowedSurfaces,omitempty"`
	MixSampleRate   int           `yaml:"mixSampleRate,omitempty"`
}

// VADConfig tunes voice activity detection on microphone audio.
type VADConfig struct {
	Confidence       float64 `yaml:"confidence,omitempty"`
	StartSecs        float64 `yaml:"startSecs,omitempty"`
	StopSecs         float64 `yaml:"stopSecs,omitempty"`
	MinVolume        float64 `yaml:"minVolume,omitempty"`
	SampleRate       int     `yaml:"sampleRate,omitempty"`
	NoiseSuppression *bool   `yaml:"noiseSuppression,omitempty"`
}

// DialogueConfig configures the chat completions client.
type DialogueConfig struct {
	BaseURL        string        `yaml:"baseURL,omitempty"`
	APIKey         string        `yaml:"apiKey,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	Temperature    float32       `yaml:"temperature,omitempty"`
	MaxTokens      int           `yaml:"maxTokens,omitempty"`
	MaxAttempts    int           `yaml:"maxAttempts,omitempty"`
	InitialBackoff time.Duration `yaml:"initialBackoff,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// AnalysisConfig configures the post-interview analysis hook. An empty
// Endpoint disables it.
type AnalysisConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	APIKey   string        `yaml:"apiKey,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Enabled reports whether analysis is configured.
func (a AnalysisConfig) Enabled() bool { return a.Endpoint != "" }

// Storage backends.
const (
	StorageLocal    = "local"
	StorageSupabase = "supabase"
)

// StorageConfig selects where recordings are uploaded.
type StorageConfig struct {
	Backend   string             `yaml:"backend,omitempty"`
	KeyPrefix string             `yaml:"keyPrefix,omitempty"`
	Local     LocalStorageConfig `yaml:"local,omitempty"`
	Bucket    string             `yaml:"bucket,omitempty"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	BaseDir string `yaml:"baseDir,omitempty"`
	// BaseURL overrides the URL returned for uploads. When empty the server
	// derives it from Server.RecordingsPath.
	BaseURL string `yaml:"baseURL,omitempty"`
}

// Record backends.
const (
	RecordsMemory   = "memory"
	RecordsSupabase = "supabase"
)

// RecordsConfig selects where interview records are written.
type RecordsConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Table   string `yaml:"table,omitempty"`
}

// SupabaseConfig holds project credentials shared by the supabase backends.
type SupabaseConfig struct {
	URL            string `yaml:"url,omitempty"`
	ServiceRoleKey string `yaml:"serviceRoleKey,omitempty"`
}

// RedisConfig configures the cross-replica finalization guard. An empty
// Addr disables it.
type RedisConfig struct {
	Addr      string        `yaml:"addr,omitempty"`
	Username  string        `yaml:"username,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	DB        int           `yaml:"db,omitempty"`
	GuardTTL  time.Duration `yaml:"guardTTL,omitempty"`
	KeyPrefix string        `yaml:"keyPrefix,omitempty"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// TelemetryConfig configures OTLP trace export. An empty Endpoint keeps the
// global no-op provider.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint,omitempty"`
	ServiceName string  `yaml:"serviceName,omitempty"`
	SampleRatio float64 `yaml:"sampleRatio,omitempty"`
	XRay        bool    `yaml:"xray,omitempty"`
}

// Enabled reports whether traces are exported.
func (t TelemetryConfig) Enabled() bool { return t.Endpoint != "" }
