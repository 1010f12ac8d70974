package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	c := DefaultConfig()
	require.Equal(t, 16000, c.CaptureSampleRate)
	require.Equal(t, 200, c.VoiceThresholdMs)
	require.Equal(t, 400, c.SilenceThreshold)
	require.Equal(t, 200, c.PreRollMs)
	require.Equal(t, 50, c.MaxBlockingMs)
	require.Equal(t, 10, c.D1Capacity)
	require.Equal(t, 10, c.D2Capacity)
	require.Equal(t, 30, c.LongAudioThresholdSec)
	require.Equal(t, 10, c.ModelCacheSize)
	require.True(t, c.DrainOnStop)
}

func TestLoadLanguageConfigFromReader_ValidYAML(t *testing.T) {
	yaml := `
en:
  asr_tag: whisper-en
  tts_tag: voice-en
es:
  asr_tag: whisper-es
  tts_tag: voice-es
`
	cfg, err := LoadLanguageConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	require.Len(t, cfg, 2)
	require.Equal(t, "whisper-en", cfg["en"].ASRTag)
}

func TestLoadLanguageConfigFromReader_RejectsMissingTag(t *testing.T) {
	yaml := `
en:
  asr_tag: whisper-en
`
	_, err := LoadLanguageConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	require.Contains(t, err.Error(), "tts_tag")
}

func TestLoadLanguageConfigFromReader_RejectsUnknownFields(t *testing.T) {
	yaml := `
en:
  asr_tag: whisper-en
  tts_tag: voice-en
  bogus_field: oops
`
	_, err := LoadLanguageConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
}

func TestRequireLanguages_FailsFastOnMissingCode(t *testing.T) {
	cfg := LanguageConfig{"en": LanguageEntry{ASRTag: "a", TTSTag: "b"}}
	err := RequireLanguages(cfg, "en", "fr")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"fr"`)
}

func TestRequireLanguages_PassesWhenAllPresent(t *testing.T) {
	cfg := LanguageConfig{
		"en": LanguageEntry{ASRTag: "a", TTSTag: "b"},
		"fr": LanguageEntry{ASRTag: "c", TTSTag: "d"},
	}
	require.NoError(t, RequireLanguages(cfg, "en", "fr"))
}
