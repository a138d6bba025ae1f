package sapa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sapa/pkg/adapters/stt"
	"github.com/harunnryd/sapa/pkg/adapters/tts"
	"github.com/harunnryd/sapa/pkg/configutil"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/providers/deepgram"
	"github.com/harunnryd/sapa/pkg/providers/elevenlabs"
	"github.com/harunnryd/sapa/pkg/providers/gemini"
	"github.com/harunnryd/sapa/pkg/providers/mock"
	"github.com/harunnryd/sapa/pkg/providers/openai"
)

type LLMFactory func(ctx context.Context, settings map[string]any, log *slog.Logger) (llm.LLMAdapter, error)
type STTFactory func(settings map[string]any, log *slog.Logger) (stt.Transcriber, error)
type TTSFactory func(settings map[string]any, log *slog.Logger) (tts.Synthesizer, error)

type ProviderRegistry struct {
	llm map[string]LLMFactory
	stt map[string]STTFactory
	tts map[string]TTSFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		llm: make(map[string]LLMFactory),
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
	}
}

// DefaultProviders registers every built-in vendor.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterLLM("openai", openaiFactory)
	r.RegisterLLM("gemini", geminiFactory)
	r.RegisterLLM("mock", mockLLMFactory)
	r.RegisterSTT("deepgram", deepgramFactory)
	r.RegisterSTT("mock", mockSTTFactory)
	r.RegisterTTS("elevenlabs", elevenlabsFactory)
	r.RegisterTTS("mock", mockTTSFactory)
	return r
}

func providerKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *ProviderRegistry) RegisterLLM(name string, f LLMFactory) { r.llm[providerKey(name)] = f }
func (r *ProviderRegistry) RegisterSTT(name string, f STTFactory) { r.stt[providerKey(name)] = f }
func (r *ProviderRegistry) RegisterTTS(name string, f TTSFactory) { r.tts[providerKey(name)] = f }

// BuildLLM creates the adapter wrapped with rate-limit retries and a
// circuit breaker.
func (r *ProviderRegistry) BuildLLM(ctx context.Context, vc VendorConfig, log *slog.Logger) (llm.LLMAdapter, error) {
	fn := r.llm[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", vc.Provider)
	}
	adapter, err := fn(ctx, vc.Settings, log)
	if err != nil {
		return nil, err
	}
	retried := llm.NewRetryAdapter(adapter, llm.RetryConfig{MaxAttempts: 3, IsRetryable: llm.RateLimitOnly})
	return llm.NewCircuitBreakerAdapter(retried, nil), nil
}

func (r *ProviderRegistry) BuildSTT(vc VendorConfig, log *slog.Logger) (stt.Transcriber, error) {
	fn := r.stt[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", vc.Provider)
	}
	return fn(vc.Settings, log)
}

func (r *ProviderRegistry) BuildTTS(vc VendorConfig, log *slog.Logger) (tts.Synthesizer, error) {
	fn := r.tts[providerKey(vc.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", vc.Provider)
	}
	return fn(vc.Settings, log)
}

func openaiFactory(_ context.Context, settings map[string]any, _ *slog.Logger) (llm.LLMAdapter, error) {
	var s struct {
		APIKey  string        `mapstructure:"api_key"`
		Model   string        `mapstructure:"model"`
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	}
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "base_url", "timeout"}}
	if err := configutil.Decode("vendors.llm.settings", settings, schema, &s); err != nil {
		return nil, err
	}
	return openai.NewAdapter(openai.Config{APIKey: s.APIKey, Model: s.Model, BaseURL: s.BaseURL, Timeout: s.Timeout}), nil
}

func geminiFactory(ctx context.Context, settings map[string]any, _ *slog.Logger) (llm.LLMAdapter, error) {
	var s struct {
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		BaseURL string `mapstructure:"base_url"`
	}
	schema := configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "base_url"}}
	if err := configutil.Decode("vendors.llm.settings", settings, schema, &s); err != nil {
		return nil, err
	}
	return gemini.NewAdapter(ctx, gemini.Config{APIKey: s.APIKey, Model: s.Model, BaseURL: s.BaseURL})
}

func mockLLMFactory(_ context.Context, settings map[string]any, _ *slog.Logger) (llm.LLMAdapter, error) {
	var s struct {
		ResponseText string `mapstructure:"response_text"`
	}
	if err := configutil.Decode("vendors.llm.settings", settings, configutil.Schema{Optional: []string{"response_text"}}, &s); err != nil {
		return nil, err
	}
	return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
}

func deepgramFactory(settings map[string]any, log *slog.Logger) (stt.Transcriber, error) {
	var s struct {
		APIKey         string        `mapstructure:"api_key"`
		Model          string        `mapstructure:"model"`
		Language       string        `mapstructure:"language"`
		SampleRate     int           `mapstructure:"sample_rate"`
		Encoding       string        `mapstructure:"encoding"`
		UtteranceEndMS int           `mapstructure:"utterance_end_ms"`
		MaxUtterance   time.Duration `mapstructure:"max_utterance"`
	}
	schema := configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "language", "sample_rate", "encoding", "utterance_end_ms", "max_utterance"},
	}
	if err := configutil.Decode("vendors.stt.settings", settings, schema, &s); err != nil {
		return nil, err
	}
	return deepgram.New(deepgram.Config{
		APIKey:         s.APIKey,
		Model:          s.Model,
		Language:       s.Language,
		SampleRate:     s.SampleRate,
		Encoding:       s.Encoding,
		UtteranceEndMS: s.UtteranceEndMS,
		MaxUtterance:   s.MaxUtterance,
	}, log), nil
}

func mockSTTFactory(settings map[string]any, _ *slog.Logger) (stt.Transcriber, error) {
	var s struct {
		Transcripts []string `mapstructure:"transcripts"`
	}
	if err := configutil.Decode("vendors.stt.settings", settings, configutil.Schema{Optional: []string{"transcripts"}}, &s); err != nil {
		return nil, err
	}
	return mock.NewSTT(mock.STTConfig{Transcripts: s.Transcripts}), nil
}

func elevenlabsFactory(settings map[string]any, log *slog.Logger) (tts.Synthesizer, error) {
	var s struct {
		APIKey       string        `mapstructure:"api_key"`
		VoiceID      string        `mapstructure:"voice_id"`
		ModelID      string        `mapstructure:"model_id"`
		OutputFormat string        `mapstructure:"output_format"`
		BaseURL      string        `mapstructure:"base_url"`
		Timeout      time.Duration `mapstructure:"timeout"`
	}
	schema := configutil.Schema{
		Required: []string{"api_key", "voice_id"},
		Optional: []string{"model_id", "output_format", "base_url", "timeout"},
	}
	if err := configutil.Decode("vendors.tts.settings", settings, schema, &s); err != nil {
		return nil, err
	}
	return elevenlabs.New(elevenlabs.Config{
		APIKey:       s.APIKey,
		VoiceID:      s.VoiceID,
		ModelID:      s.ModelID,
		OutputFormat: s.OutputFormat,
		BaseURL:      s.BaseURL,
		Timeout:      s.Timeout,
	}, log), nil
}

func mockTTSFactory(settings map[string]any, _ *slog.Logger) (tts.Synthesizer, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{}); err != nil {
		return nil, fmt.Errorf("vendors.tts.settings: %w", err)
	}
	return mock.NewTTS(mock.TTSConfig{}), nil
}
