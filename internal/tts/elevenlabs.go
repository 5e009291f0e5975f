package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsTimeout        = 30 * time.Second
)

// ElevenLabsProvider streams synthesized speech from the ElevenLabs API.
type ElevenLabsProvider struct {
	apiKey       string
	voiceID      string
	modelID      string
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

// ElevenLabsConfig configures the provider.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
	// OutputFormat selects the audio encoding, e.g. "ulaw_8000" for a
	// telephony leg.
	OutputFormat string
	// BaseURL overrides the API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
}

// NewElevenLabsProvider creates the provider.
func NewElevenLabsProvider(cfg ElevenLabsConfig) (*ElevenLabsProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("tts: elevenlabs API key required")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, fmt.Errorf("tts: elevenlabs voice ID required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "ulaw_8000"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: elevenLabsTimeout}
	}
	return &ElevenLabsProvider{
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   cfg.HTTPClient,
	}, nil
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize requests streamed synthesis and returns the audio body. The
// caller owns closing the stream.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: p.modelID})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s", p.baseURL, p.voiceID, p.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: http request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("tts: elevenlabs returned %d: %s", resp.StatusCode, string(msg))
	}

	return resp.Body, nil
}
