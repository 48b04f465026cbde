package config

import "time"

// Defaults applied by Load.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultResultsPath       = "/interviews/"
	DefaultRecordingsPath    = "/recordings/"

	DefaultInterviewDuration = 30 * time.Minute
	DefaultMinWidth          = 1200
	DefaultMinHeight         = 700
	DefaultMixSampleRate     = 16000

	DefaultDialogueMaxAttempts = 3

	DefaultStorageDir = "recordings"
	DefaultBucket     = "recordings"
	DefaultKeyPrefix  = "recordings"
	DefaultTable      = "interviews"

	DefaultGuardTTL    = 30 * time.Minute
	DefaultServiceName = "interviewd"
)

// Default returns a Config with every default applied. It is what an empty
// spec loads as.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	s := &c.Server
	s.Addr = orString(s.Addr, DefaultAddr)
	s.ReadHeaderTimeout = orDuration(s.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	s.ShutdownTimeout = orDuration(s.ShutdownTimeout, DefaultShutdownTimeout)
	s.HandshakeTimeout = orDuration(s.HandshakeTimeout, DefaultHandshakeTimeout)
	s.ResultsPath = orString(s.ResultsPath, DefaultResultsPath)
	s.RecordingsPath = orString(s.RecordingsPath, DefaultRecordingsPath)

	iv := &c.Interview
	iv.Duration = orDuration(iv.Duration, DefaultInterviewDuration)
	if iv.MinWidth == 0 {
		iv.MinWidth = DefaultMinWidth
	}
	if iv.MinHeight == 0 {
		iv.MinHeight = DefaultMinHeight
	}
	if iv.MixSampleRate == 0 {
		iv.MixSampleRate = DefaultMixSampleRate
	}

	if c.Dialogue.MaxAttempts == 0 {
		c.Dialogue.MaxAttempts = DefaultDialogueMaxAttempts
	}

	st := &c.Storage
	st.Backend = orString(st.Backend, StorageLocal)
	st.KeyPrefix = orString(st.KeyPrefix, DefaultKeyPrefix)
	st.Local.BaseDir = orString(st.Local.BaseDir, DefaultStorageDir)
	st.Bucket = orString(st.Bucket, DefaultBucket)

	c.Records.Backend = orString(c.Records.Backend, RecordsMemory)
	c.Records.Table = orString(c.Records.Table, DefaultTable)

	c.Redis.GuardTTL = orDuration(c.Redis.GuardTTL, DefaultGuardTTL)

	c.Telemetry.ServiceName = orString(c.Telemetry.ServiceName, DefaultServiceName)

	if c.Logging.DefaultLevel == "" {
		c.Logging.DefaultLevel = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
