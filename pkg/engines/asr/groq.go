// Package asr provides HTTP clients for hosted speech-recognition
// services, each implementing the engines.ASREngine contract over
// already-encoded WAV bytes.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/babelstream/babelstream/pkg/engines"
)

// Groq transcribes via Groq's OpenAI-compatible Whisper endpoint.
type Groq struct {
	apiKey string
	url    string
	model  string
}

// NewGroq builds a Groq ASR engine. An empty model defaults to the
// turbo Whisper variant.
func NewGroq(apiKey, model string) *Groq {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &Groq{apiKey: apiKey, url: "https://api.groq.com/openai/v1/audio/transcriptions", model: model}
}

func (g *Groq) Name() string { return "groq-asr" }

func (g *Groq) Transcribe(ctx context.Context, wav []byte, languageHint string) (engines.ASRResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", g.model); err != nil {
		return engines.ASRResult{}, err
	}
	if languageHint != "" {
		if err := writer.WriteField("language", languageHint); err != nil {
			return engines.ASRResult{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return engines.ASRResult{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wav)); err != nil {
		return engines.ASRResult{}, err
	}
	if err := writer.Close(); err != nil {
		return engines.ASRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.url, body)
	if err != nil {
		return engines.ASRResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engines.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return engines.ASRResult{}, fmt.Errorf("groq asr error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engines.ASRResult{}, err
	}

	return engines.ASRResult{Text: result.Text, DetectedLanguage: result.Language}, nil
}
