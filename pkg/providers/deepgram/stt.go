// Package deepgram transcribes utterances over Deepgram's live websocket API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/harunnryd/sapa/pkg/adapters/stt"
	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/logging"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	UtteranceEndMS int
	// MaxUtterance bounds a single Transcribe call.
	MaxUtterance time.Duration
}

type Transcriber struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Transcriber {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.UtteranceEndMS <= 0 {
		cfg.UtteranceEndMS = 1000
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transcriber{cfg: cfg, logger: logging.NewComponentLogger(log, "deepgram_stt")}
}

func (t *Transcriber) Name() string { return "deepgram" }

// Transcribe streams audio until Deepgram reports the end of speech, the
// reader is exhausted, or MaxUtterance elapses.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.MaxUtterance)
	defer cancel()

	opts := &interfaces.LiveTranscriptionOptions{
		Model:          t.cfg.Model,
		Language:       t.cfg.Language,
		Encoding:       t.cfg.Encoding,
		SampleRate:     t.cfg.SampleRate,
		InterimResults: true,
		VadEvents:      true,
		SmartFormat:    true,
		UtteranceEndMs: fmt.Sprintf("%d", t.cfg.UtteranceEndMS),
	}
	cb := newCollector(t.logger)
	dg, err := client.NewWSUsingCallback(ctx, t.cfg.APIKey, &interfaces.ClientOptions{EnableKeepAlive: true}, opts, cb)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("deepgram: create client: %w", err), errorsx.ReasonSTTConnect)
	}
	if !dg.Connect() {
		return "", errorsx.Wrap(errors.New("deepgram: connection failed"), errorsx.ReasonSTTConnect)
	}
	defer dg.Stop()
	t.logger.Debug("deepgram_connected", "model", t.cfg.Model, "sample_rate", t.cfg.SampleRate)

	streamErr := make(chan error, 1)
	go func() { streamErr <- dg.Stream(audio) }()

	select {
	case <-cb.done:
	case err := <-streamErr:
		if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
			return "", errorsx.Wrap(fmt.Errorf("deepgram: stream: %w", err), errorsx.ReasonSTTSend)
		}
		// audio ended; give the service a moment to flush its final result
		select {
		case <-cb.done:
		case <-time.After(time.Duration(t.cfg.UtteranceEndMS) * time.Millisecond):
		case <-ctx.Done():
		}
	case <-ctx.Done():
		t.logger.Debug("deepgram_utterance_timeout")
	}
	if err := cb.failure(); err != nil {
		return "", err
	}
	return cb.transcript(), nil
}

// collector accumulates final transcript segments for one utterance.
type collector struct {
	logger *slog.Logger
	done   chan struct{}

	mu       sync.Mutex
	segments []string
	err      error
	closed   bool
}

func newCollector(log *slog.Logger) *collector {
	return &collector{logger: log, done: make(chan struct{})}
}

func (c *collector) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *collector) transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(strings.Join(c.segments, " "))
}

func (c *collector) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *collector) Open(*msginterfaces.OpenResponse) error { return nil }

func (c *collector) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if mr.IsFinal && text != "" {
		c.mu.Lock()
		c.segments = append(c.segments, text)
		c.mu.Unlock()
		c.logger.Debug("transcript_segment", "is_final", true, "speech_final", mr.SpeechFinal)
	}
	if mr.SpeechFinal && c.transcript() != "" {
		c.finish()
	}
	return nil
}

func (c *collector) Metadata(md *msginterfaces.MetadataResponse) error {
	c.logger.Debug("deepgram_metadata_received", "request_id", md.RequestID)
	return nil
}

func (c *collector) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }

func (c *collector) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	if c.transcript() != "" {
		c.finish()
	}
	return nil
}

func (c *collector) Close(*msginterfaces.CloseResponse) error {
	c.finish()
	return nil
}

func (c *collector) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Error("deepgram_error", "error_code", er.ErrCode, "error_message", er.ErrMsg)
	c.mu.Lock()
	if c.err == nil {
		c.err = errorsx.Wrap(fmt.Errorf("deepgram: %s: %s", er.ErrCode, er.ErrMsg), errorsx.ReasonSTTSend)
	}
	c.mu.Unlock()
	c.finish()
	return nil
}

func (c *collector) UnhandledEvent([]byte) error { return nil }

var (
	_ stt.Transcriber                   = (*Transcriber)(nil)
	_ msginterfaces.LiveMessageCallback = (*collector)(nil)
)
