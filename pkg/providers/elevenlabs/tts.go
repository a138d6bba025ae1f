// Package elevenlabs synthesizes speech over the ElevenLabs stream-input websocket.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/sapa/pkg/adapters/tts"
	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io/v1"

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	// BaseURL overrides the websocket endpoint root.
	BaseURL string
	Timeout time.Duration
}

type Synthesizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Synthesizer {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{cfg: cfg, logger: logging.NewComponentLogger(log, "elevenlabs_tts")}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

// Synthesize sends text as a single generation and collects every audio
// chunk until the server marks the stream final.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return nil, errorsx.Wrap(errors.New("elevenlabs: missing api key or voice id"), errorsx.ReasonTTSConnect)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, s.url(), http.Header{"xi-api-key": []string{s.cfg.APIKey}})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return nil, errorsx.Wrap(fmt.Errorf("elevenlabs: connect: %w", err), errorsx.ReasonTTSConnect)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("elevenlabs: send: %w", err), errorsx.ReasonTTSSend)
		}
	}

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				return audio, nil
			}
			if ctx.Err() != nil {
				return nil, errorsx.Wrap(fmt.Errorf("elevenlabs: %w", ctx.Err()), errorsx.ReasonTTSSend)
			}
			return nil, errorsx.Wrap(fmt.Errorf("elevenlabs: read: %w", err), errorsx.ReasonTTSSend)
		}
		chunk, final, err := decodeChunk(data)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonTTSSend)
		}
		audio = append(audio, chunk...)
		if final {
			s.logger.Debug("tts_audio_complete", "size_bytes", len(audio))
			return audio, nil
		}
	}
}

func (s *Synthesizer) url() string {
	q := url.Values{}
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input?" + q.Encode()
}

type chunkMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeChunk(data []byte) ([]byte, bool, error) {
	var msg chunkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("elevenlabs: decode message: %w", err)
	}
	if msg.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
	}
	if msg.Audio == "" {
		return nil, msg.IsFinal, nil
	}
	raw, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: decode audio: %w", err)
	}
	return raw, msg.IsFinal, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
