// Package translate provides LLM-backed translation clients implementing
// the engines.Translator contract. Each engine builds a one-shot
// translation prompt; no conversation history is carried across
// utterances.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Anthropic translates via the Messages API.
type Anthropic struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &Anthropic{apiKey: apiKey, url: "https://api.anthropic.com/v1/messages", model: model}
}

func (a *Anthropic) Name() string { return "anthropic-translate" }

func (a *Anthropic) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload := map[string]any{
		"model":      a.model,
		"system":     translationSystemPrompt(sourceLang, targetLang),
		"messages":   []map[string]string{{"role": "user", "content": text}},
		"max_tokens": 1024,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic translate error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic translate: no content returned")
	}
	return result.Content[0].Text, nil
}

// translationSystemPrompt is shared across translate engines that accept
// a system/instruction message. An empty sourceLang means the model
// should infer the source language itself.
func translationSystemPrompt(sourceLang, targetLang string) string {
	if sourceLang == "" {
		return fmt.Sprintf("Translate the user's message into %s. Detect the source language yourself. Reply with only the translation, no commentary.", targetLang)
	}
	return fmt.Sprintf("Translate the user's message from %s into %s. Reply with only the translation, no commentary.", sourceLang, targetLang)
}
