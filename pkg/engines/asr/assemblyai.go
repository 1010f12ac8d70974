package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/babelstream/babelstream/pkg/engines"
)

// AssemblyAI transcribes via AssemblyAI's upload-then-poll transcript API.
type AssemblyAI struct {
	apiKey string
}

func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{apiKey: apiKey}
}

func (a *AssemblyAI) Name() string { return "assemblyai-asr" }

func (a *AssemblyAI) Transcribe(ctx context.Context, wav []byte, languageHint string) (engines.ASRResult, error) {
	uploadURL, err := a.upload(ctx, wav)
	if err != nil {
		return engines.ASRResult{}, err
	}

	transcriptID, err := a.submit(ctx, uploadURL, languageHint)
	if err != nil {
		return engines.ASRResult{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return engines.ASRResult{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, status, err := a.getTranscript(ctx, transcriptID)
			if err != nil {
				return engines.ASRResult{}, err
			}
			if status == "completed" {
				return engines.ASRResult{Text: text}, nil
			}
			if status == "error" {
				return engines.ASRResult{}, fmt.Errorf("assemblyai asr: transcription failed")
			}
		}
	}
}

func (a *AssemblyAI) upload(ctx context.Context, wav []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.assemblyai.com/v2/upload", bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadURL, nil
}

func (a *AssemblyAI) submit(ctx context.Context, uploadURL, languageHint string) (string, error) {
	payload := map[string]any{"audio_url": uploadURL}
	if languageHint != "" {
		payload["language_code"] = languageHint
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.assemblyai.com/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (a *AssemblyAI) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.assemblyai.com/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Text, result.Status, nil
}
