// Package engines defines the pluggable contracts the worker drives for
// each phase: transcription, translation, and speech synthesis. Concrete
// provider clients live in the asr, translate, and tts subpackages.
package engines

import "context"

// ASRResult is one transcription attempt's product.
type ASRResult struct {
	Text             string
	DetectedLanguage string // empty when the engine doesn't report detection
}

// ASREngine transcribes a WAV-encoded utterance. languageHint is the
// declared source language; empty means let the engine auto-detect.
type ASREngine interface {
	Transcribe(ctx context.Context, wav []byte, languageHint string) (ASRResult, error)
	Name() string
}

// Translator converts text from sourceLang to targetLang. sourceLang may
// be empty if the ASR phase didn't detect one; engines should treat that
// as "infer from text".
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Name() string
}

// TTSEngine synthesizes text into encoded audio bytes. The Worker Stage
// decodes them as a WAV container via pkg/audio before resampling to the
// playback rate; a response that is not WAV fails the utterance.
type TTSEngine interface {
	Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error)
	Name() string
}
