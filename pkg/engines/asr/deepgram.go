package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/babelstream/babelstream/pkg/engines"
)

// Deepgram transcribes via Deepgram's nova-2 listen endpoint, posting the
// WAV container directly (Deepgram auto-detects container/rate from the
// RIFF header rather than needing a raw-PCM content-type hint).
type Deepgram struct {
	apiKey string
	url    string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{apiKey: apiKey, url: "https://api.deepgram.com/v1/listen"}
}

func (d *Deepgram) Name() string { return "deepgram-asr" }

func (d *Deepgram) Transcribe(ctx context.Context, wav []byte, languageHint string) (engines.ASRResult, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return engines.ASRResult{}, err
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if languageHint != "" {
		params.Set("language", languageHint)
	} else {
		params.Set("detect_language", "true")
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(wav))
	if err != nil {
		return engines.ASRResult{}, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engines.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return engines.ASRResult{}, fmt.Errorf("deepgram asr error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Detected     string `json:"detected_language"`
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engines.ASRResult{}, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return engines.ASRResult{}, nil
	}
	ch := result.Results.Channels[0]
	return engines.ASRResult{Text: ch.Alternatives[0].Transcript, DetectedLanguage: ch.Detected}, nil
}
