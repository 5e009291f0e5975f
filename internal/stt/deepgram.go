package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

const defaultDeepgramURL = "wss://api.deepgram.com/v1/listen"

// DeepgramProvider opens live transcription sessions against the Deepgram
// streaming API.
type DeepgramProvider struct {
	apiKey     string
	model      string
	language   string
	encoding   string
	sampleRate int
	baseURL    string
	dialer     *websocket.Dialer
	logger     *logging.Logger
}

// DeepgramConfig configures the live transcription provider.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	Encoding   string
	SampleRate int
	// BaseURL overrides the API endpoint (for testing).
	BaseURL string
	Dialer  *websocket.Dialer
	Logger  *logging.Logger
}

// NewDeepgramProvider creates the provider.
func NewDeepgramProvider(cfg DeepgramConfig) (*DeepgramProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stt: deepgram API key required")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "mulaw"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepgramURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &DeepgramProvider{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.Language,
		encoding:   cfg.Encoding,
		sampleRate: cfg.SampleRate,
		baseURL:    cfg.BaseURL,
		dialer:     cfg.Dialer,
		logger:     cfg.Logger,
	}, nil
}

// Open dials the streaming endpoint and starts the read pump.
func (p *DeepgramProvider) Open(ctx context.Context, onTranscript TranscriptHandler) (ProviderSession, error) {
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("encoding", p.encoding)
	q.Set("sample_rate", strconv.Itoa(p.sampleRate))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, resp, err := p.dialer.DialContext(ctx, p.baseURL+"?"+q.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stt: deepgram dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stt: deepgram dial failed: %w", err)
	}

	sess := &deepgramSession{conn: conn, logger: p.logger}
	go sess.readPump(onTranscript)
	return sess, nil
}

type deepgramSession struct {
	conn    *websocket.Conn
	logger  *logging.Logger
	writeMu sync.Mutex
	closed  bool
}

// deepgramResult is the subset of the Results message we consume.
type deepgramResult struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

func (s *deepgramSession) Send(audio []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (s *deepgramSession) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// CloseStream tells Deepgram to flush the final transcript.
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return s.conn.Close()
}

func (s *deepgramSession) readPump(onTranscript TranscriptHandler) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.writeMu.Lock()
			closed := s.closed
			s.writeMu.Unlock()
			if !closed {
				s.logger.Warn("stt: deepgram read closed", "error", err)
			}
			return
		}

		var result deepgramResult
		if err := json.Unmarshal(data, &result); err != nil {
			s.logger.Warn("stt: unparseable deepgram message", "error", err)
			continue
		}
		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}
		onTranscript(result.Channel.Alternatives[0].Transcript, result.IsFinal, result.SpeechFinal)
	}
}
