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

// OpenAI transcribes via OpenAI's Whisper transcription endpoint.
type OpenAI struct {
	apiKey string
	url    string
	model  string
}

// NewOpenAI builds an OpenAI ASR engine. An empty model defaults to
// whisper-1.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{apiKey: apiKey, url: "https://api.openai.com/v1/audio/transcriptions", model: model}
}

func (o *OpenAI) Name() string { return "openai-asr" }

func (o *OpenAI) Transcribe(ctx context.Context, wav []byte, languageHint string) (engines.ASRResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", o.model); err != nil {
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

	req, err := http.NewRequestWithContext(ctx, "POST", o.url, body)
	if err != nil {
		return engines.ASRResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engines.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return engines.ASRResult{}, fmt.Errorf("openai asr error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engines.ASRResult{}, err
	}

	return engines.ASRResult{Text: result.Text}, nil
}
