// Package config holds the pipeline's tunable Config — every VAD
// threshold, queue capacity, and timing knob the stages read — plus the
// language config loader: a read-only language-code -> {ASR tag, TTS
// tag} table loaded from YAML with strict field checking.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects every pipeline tunable.
type Config struct {
	// Audio I/O
	CaptureSampleRate  int // one of 8000, 16000, 32000, 48000; default 16000
	CaptureChannels    int // 1 or 2; default 1
	CaptureBlockMs     int // default 30
	PlaybackSampleRate int // default 44100
	PlaybackSubChunk   int // default 1024 samples per device write

	// VAD segmenter
	FrameMs           int     // 10, 20, or 30; default 30
	VoiceThresholdMs  int     // default 200
	SilenceThreshold  int     // default 400 (ms)
	Aggressiveness    int     // 0-3; default 0
	SilenceThreshDBFS float64 // RMS floor for the energy detector; default -34 dBFS

	// Capture stage
	PreRollMs     int // default 200
	MaxBlockingMs int // default 50, bounds the capture callback's enqueue wait

	// Bounded queues
	D1Capacity int // default 10
	D2Capacity int // default 10

	// Worker stage
	LongAudioThresholdSec int // default 30
	ChunkOverlapSec       int // overlap between long-audio chunks; default 2

	// Model cache
	ModelCacheSize int // default 10 resident handles

	// Jitter buffer
	JitterDepthChunks int // ~250ms worth at playback rate; default depends on sub-chunk size
	JitterMaxChunks   int // backstop capacity; default 4x depth

	// Shutdown
	ShutdownTimeoutSec int  // default 2
	DrainOnStop        bool // default true: finish current utterance, discard queue tail
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		CaptureSampleRate:  16000,
		CaptureChannels:    1,
		CaptureBlockMs:     30,
		PlaybackSampleRate: 44100,
		PlaybackSubChunk:   1024,

		FrameMs:           30,
		VoiceThresholdMs:  200,
		SilenceThreshold:  400,
		Aggressiveness:    0,
		SilenceThreshDBFS: -34,

		PreRollMs:     200,
		MaxBlockingMs: 50,

		D1Capacity: 10,
		D2Capacity: 10,

		LongAudioThresholdSec: 30,
		ChunkOverlapSec:       2,

		ModelCacheSize: 10,

		JitterDepthChunks: 11, // ~250ms / 1024 samples at 44.1kHz
		JitterMaxChunks:   44,

		ShutdownTimeoutSec: 2,
		DrainOnStop:        true,
	}
}

// LanguageEntry is the YAML value for one language code.
type LanguageEntry struct {
	ASRTag string `yaml:"asr_tag"`
	TTSTag string `yaml:"tts_tag"`
}

// LanguageConfig is the read-only language-code -> tag mapping.
type LanguageConfig map[string]LanguageEntry

// LoadLanguageConfig reads and validates the YAML language table at path.
func LoadLanguageConfig(path string) (LanguageConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadLanguageConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadLanguageConfigFromReader decodes and validates a language table from
// r. Exposed separately so tests can build configs from string literals.
func LoadLanguageConfigFromReader(r io.Reader) (LanguageConfig, error) {
	cfg := make(LanguageConfig)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ValidateLanguageConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateLanguageConfig fails fast on malformed entries: every language
// code must declare both tags.
func ValidateLanguageConfig(cfg LanguageConfig) error {
	var errs []error
	for code, entry := range cfg {
		if code == "" {
			errs = append(errs, errors.New("config: language entry with empty code"))
			continue
		}
		if entry.ASRTag == "" {
			errs = append(errs, fmt.Errorf("config: language %q missing asr_tag", code))
		}
		if entry.TTSTag == "" {
			errs = append(errs, fmt.Errorf("config: language %q missing tts_tag", code))
		}
	}
	return errors.Join(errs...)
}

// RequireLanguages validates that every code named on the command line
// is present in cfg, failing fast before the pipeline starts.
func RequireLanguages(cfg LanguageConfig, codes ...string) error {
	var errs []error
	for _, code := range codes {
		if _, ok := cfg[code]; !ok {
			errs = append(errs, fmt.Errorf("config: language %q not found in language config", code))
		}
	}
	return errors.Join(errs...)
}
