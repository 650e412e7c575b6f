package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config stores runtime configuration for the widget backend.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Speech   SpeechConfig
	Rules    RulesConfig
	Storage  StorageConfig
	Log      LogConfig
	Timer    TimerConfig
	Cue      CueConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type SpeechConfig struct {
	Locale         string
	InterimResults bool
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type StorageConfig struct {
	Backend string
	Dir     string
}

type LogConfig struct {
	Dir     string
	Level   string
	Console bool
}

type TimerConfig struct {
	TickInterval time.Duration
}

type CueConfig struct {
	Enabled     bool
	FrequencyHz int
}

// environment mirrors Config with lenient scalar types so a single malformed
// variable falls back to its default instead of failing the whole load.
type environment struct {
	DeepgramAPIKey      string      `env:"DEEPGRAM_API_KEY"`
	DeepgramAPIBase     string      `env:"DEEPGRAM_API_BASE"`
	DeepgramModel       string      `env:"DEEPGRAM_MODEL"`
	DeepgramLanguage    string      `env:"DEEPGRAM_LANGUAGE"`
	DeepgramSmartFormat lenientBool `env:"DEEPGRAM_SMART_FORMAT"`

	FFMPEGCommand    string     `env:"VIBESPACE_FFMPEG_COMMAND"`
	AudioInputFormat string     `env:"VIBESPACE_AUDIO_INPUT_FORMAT"`
	AudioInputDevice string     `env:"VIBESPACE_AUDIO_INPUT_DEVICE"`
	SampleRate       lenientInt `env:"VIBESPACE_SAMPLE_RATE"`
	Channels         lenientInt `env:"VIBESPACE_CHANNELS"`
	ChunkSize        lenientInt `env:"VIBESPACE_AUDIO_CHUNK_SIZE"`

	Locale         string      `env:"VIBESPACE_LOCALE"`
	InterimResults lenientBool `env:"VIBESPACE_INTERIM_RESULTS"`

	RulesFile          string      `env:"VIBESPACE_RULES_FILE"`
	RuleIterationLimit lenientInt  `env:"VIBESPACE_RULE_ITERATION_LIMIT"`
	StorageBackend     string      `env:"VIBESPACE_STORAGE"`
	DataDir            string      `env:"VIBESPACE_DATA_DIR"`
	LogDir             string      `env:"VIBESPACE_LOG_DIR"`
	LogLevel           string      `env:"VIBESPACE_LOG_LEVEL"`
	LogConsole         lenientBool `env:"VIBESPACE_LOG_CONSOLE"`
	TickMillis         lenientInt  `env:"VIBESPACE_TICK_MS"`
	CueEnabled         lenientBool `env:"VIBESPACE_CUE_ENABLED"`
	CueFrequencyHz     lenientInt  `env:"VIBESPACE_CUE_FREQUENCY_HZ"`
}

// Load resolves configuration from .env, environment variables and defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	_ = godotenv.Load()

	var raw environment
	if err := env.Parse(&raw); err != nil {
		return Config{}, err
	}

	baseDir := filepath.Join(home, ".config", "vibespace")
	dataDir := firstNonEmpty(raw.DataDir, baseDir)

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(raw.DeepgramAPIKey),
			APIBaseURL:  firstNonEmpty(raw.DeepgramAPIBase, "https://api.deepgram.com/v1"),
			Model:       firstNonEmpty(raw.DeepgramModel, "nova-2"),
			SmartFormat: raw.DeepgramSmartFormat.or(true),
		},
		Audio: AudioConfig{
			RecorderCommand: firstNonEmpty(raw.FFMPEGCommand, "ffmpeg"),
			InputFormat:     firstNonEmpty(raw.AudioInputFormat, "pulse"),
			InputDevice:     firstNonEmpty(raw.AudioInputDevice, "default"),
			SampleRate:      raw.SampleRate.or(16000),
			Channels:        raw.Channels.or(1),
			ChunkSize:       raw.ChunkSize.or(4096),
		},
		Speech: SpeechConfig{
			Locale:         firstNonEmpty(raw.Locale, raw.DeepgramLanguage, "en-US"),
			InterimResults: raw.InterimResults.or(true),
		},
		Rules: RulesConfig{
			Path:           firstNonEmpty(raw.RulesFile, filepath.Join(baseDir, "phrases.yaml")),
			IterationLimit: raw.RuleIterationLimit.or(30),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(firstNonEmpty(raw.StorageBackend, StorageFile)),
			Dir:     dataDir,
		},
		Log: LogConfig{
			Dir:     firstNonEmpty(raw.LogDir, filepath.Join(dataDir, "logs")),
			Level:   firstNonEmpty(raw.LogLevel, "info"),
			Console: raw.LogConsole.or(false),
		},
		Timer: TimerConfig{
			TickInterval: time.Duration(raw.TickMillis.or(1000)) * time.Millisecond,
		},
		Cue: CueConfig{
			Enabled:     raw.CueEnabled.or(true),
			FrequencyHz: raw.CueFrequencyHz.or(880),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	switch cfg.Storage.Backend {
	case StorageFile, StorageSQLite, StorageMemory:
	default:
		cfg.Storage.Backend = StorageFile
	}
	if cfg.Timer.TickInterval <= 0 {
		cfg.Timer.TickInterval = time.Second
	}
	if cfg.Cue.FrequencyHz <= 0 {
		cfg.Cue.FrequencyHz = 880
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type lenientInt struct {
	value int
	set   bool
}

func (i *lenientInt) UnmarshalText(text []byte) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(string(text)))
	if err != nil {
		return nil
	}
	i.value, i.set = parsed, true
	return nil
}

func (i lenientInt) or(fallback int) int {
	if !i.set {
		return fallback
	}
	return i.value
}

type lenientBool struct {
	value bool
	set   bool
}

func (b *lenientBool) UnmarshalText(text []byte) error {
	switch strings.TrimSpace(strings.ToLower(string(text))) {
	case "1", "true", "yes", "on":
		b.value, b.set = true, true
	case "0", "false", "no", "off":
		b.value, b.set = false, true
	}
	return nil
}

func (b lenientBool) or(fallback bool) bool {
	if !b.set {
		return fallback
	}
	return b.value
}
