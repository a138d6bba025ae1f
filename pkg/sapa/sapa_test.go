package sapa

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/store"
	"github.com/harunnryd/sapa/pkg/toolbox"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "wk")
	t.Setenv("SAPA_LOG_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "sapa.yaml")
	body := `
assistant:
  name: Jarvis
tools:
  news:
    api_key: ${TEST_NEWS_KEY}
vendors:
  llm:
    provider: mock
    settings:
      response_text: ${TEST_LLM_TEXT}
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TEST_NEWS_KEY", "nk")
	t.Setenv("TEST_LLM_TEXT", "hi there")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Assistant.Name != "Jarvis" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected assistant/log settings: %+v %s", cfg.Assistant, cfg.LogLevel)
	}
	if cfg.Router.Mode != RouterKeyword || cfg.Tools.Weather.DefaultCity != "Mangalpalle" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Tools.Weather.APIKey != "wk" || cfg.Tools.News.APIKey != "nk" {
		t.Fatalf("env not expanded: weather=%q news=%q", cfg.Tools.Weather.APIKey, cfg.Tools.News.APIKey)
	}
	if got := cfg.Vendors.LLM.Settings["response_text"]; got != "hi there" {
		t.Fatalf("vendor settings not expanded: %v", got)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mode":   "router:\n  mode: psychic\n",
		"llm":    "router:\n  mode: llm\n",
		"format": "log_format: xml\n",
		"sms":    "notify:\n  sms:\n    enabled: true\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadEnvSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SAPA_TEST_ONLY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SAPA_TEST_ONLY", "")
	os.Unsetenv("SAPA_TEST_ONLY")
	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("SAPA_TEST_ONLY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

func TestProviderRegistry(t *testing.T) {
	reg := DefaultProviders()
	if _, err := reg.BuildLLM(context.Background(), VendorConfig{Provider: "nope"}, nil); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if _, err := reg.BuildSTT(VendorConfig{Provider: "deepgram"}, nil); err == nil {
		t.Fatalf("expected missing api_key error")
	}
	if _, err := reg.BuildTTS(VendorConfig{Provider: "mock", Settings: map[string]any{"bogus": 1}}, nil); err == nil {
		t.Fatalf("expected unknown setting error")
	}
	adapter, err := reg.BuildLLM(context.Background(), VendorConfig{Provider: "MOCK"}, nil)
	if err != nil || adapter == nil {
		t.Fatalf("build mock llm: %v", err)
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{
		LogLevel:  "error",
		Assistant: AssistantConfig{Name: "Assistant"},
		Router:    RouterConfig{Mode: RouterKeyword},
	}
	cfg.Tools.Weather = toolbox.WeatherConfig{APIKey: "k", DefaultCity: "Mangalpalle", Units: "metric"}
	cfg.Tools.Browser = toolbox.BrowserConfig{}
	return cfg
}

func fixedNow() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.Local) }

func TestAssistantChatSessionRecordsJournal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cod":200,"main":{"temp":30,"humidity":70},"weather":[{"description":"clear sky"}]}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Assistant.Greet = true
	cfg.Tools.Weather.BaseURL = srv.URL
	cfg.Observability.JournalPath = filepath.Join(t.TempDir(), "journal.db")

	var out strings.Builder
	a, err := Build(context.Background(), cfg, Options{
		In:         strings.NewReader("what's the weather in Mumbai\nexit\n"),
		Out:        &out,
		HTTPClient: srv.Client(),
		Now:        fixedNow,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Good Morning!", "The weather in Mumbai is clear sky.", "Goodbye! Have a great day."} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in output:\n%s", want, text)
		}
	}

	j, err := store.Open(context.Background(), cfg.Observability.JournalPath)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j.Close()
	entries, err := j.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Tool != "weather" || entries[0].Status != invoke.StatusCompleted {
		t.Fatalf("unexpected journal entries: %+v", entries)
	}
}

func TestAssistantDisabledToolIsNotRouted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Disabled = []string{"weather"}
	var out strings.Builder
	a, err := Build(context.Background(), cfg, Options{
		In:     strings.NewReader("weather in Mumbai\n"),
		Out:    &out,
		Now:    fixedNow,
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := a.Registry.Lookup("weather"); err == nil {
		t.Fatalf("weather should not be registered")
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "I don't know how to do that yet") {
		t.Fatalf("expected unknown reply, got:\n%s", out.String())
	}
}

func TestAssistantRegistersChatWithLLM(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.Mode = RouterHybrid
	cfg.Vendors.LLM = VendorConfig{Provider: "mock", Settings: map[string]any{"response_text": "none"}}
	a, err := Build(context.Background(), cfg, Options{In: strings.NewReader(""), Out: io.Discard, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	if _, err := a.Registry.Lookup("chat"); err != nil {
		t.Fatalf("chat not registered: %v", err)
	}
}

func TestAssistantImagineNeedsImageTool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Disabled = []string{"image"}
	_, err := Build(context.Background(), cfg, Options{Imagine: true, In: strings.NewReader(""), Out: io.Discard, Logger: logging.Discard()})
	if err == nil {
		t.Fatalf("expected error without image tool")
	}
}

type stubSource struct{}

func (stubSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("pcm")), nil
}

type recordingSink struct {
	mu    sync.Mutex
	plays int
}

func (s *recordingSink) Play(context.Context, []byte) error {
	s.mu.Lock()
	s.plays++
	s.mu.Unlock()
	return nil
}

func TestAssistantVoiceSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vendors.STT = VendorConfig{Provider: "mock", Settings: map[string]any{"transcripts": []any{"hello"}}}
	cfg.Vendors.TTS = VendorConfig{Provider: "mock"}
	sink := &recordingSink{}
	var out strings.Builder
	a, err := Build(context.Background(), cfg, Options{
		Voice:       true,
		Out:         &out,
		Now:         fixedNow,
		Logger:      logging.Discard(),
		AudioSource: stubSource{},
		AudioSink:   sink,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "You: hello") || !strings.Contains(text, "Hello there! How can I assist you?") {
		t.Fatalf("unexpected voice transcript:\n%s", text)
	}
	// one reply plus the farewell
	if sink.plays != 2 {
		t.Fatalf("expected 2 clips played, got %d", sink.plays)
	}
}

func TestAssistantVoiceReplaysAudioFiles(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "utterance.raw")
	if err := os.WriteFile(clip, []byte("pcm"), 0o600); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	cfg := testConfig(t)
	cfg.Audio.Files = []string{clip}
	cfg.Audio.Record = nil
	cfg.Vendors.STT = VendorConfig{Provider: "mock", Settings: map[string]any{"transcripts": []any{"hello", "what time is it"}}}
	cfg.Vendors.TTS = VendorConfig{Provider: "mock"}
	sink := &recordingSink{}
	var out strings.Builder
	a, err := Build(context.Background(), cfg, Options{
		Voice:     true,
		Out:       &out,
		Now:       fixedNow,
		Logger:    logging.Discard(),
		AudioSink: sink,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "You: hello") {
		t.Fatalf("expected replayed utterance, got:\n%s", text)
	}
	// the source is exhausted after one file, so the second transcript is never requested
	if strings.Contains(text, "what time is it") {
		t.Fatalf("expected session to end with the files, got:\n%s", text)
	}
	if sink.plays != 2 {
		t.Fatalf("expected 2 clips played, got %d", sink.plays)
	}
}

func TestBuildFailureReleasesResources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	cfg := testConfig(t)
	cfg.Observability.JournalPath = path
	a, err := Build(context.Background(), cfg, Options{Voice: true, Out: io.Discard, Logger: logging.Discard()})
	if err == nil {
		t.Fatalf("expected missing vendor error")
	}
	if a != nil {
		t.Fatalf("expected no assistant on failure")
	}
	j, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen journal after failed build: %v", err)
	}
	j.Close()
}

func TestAssistantVoiceRequiresVendors(t *testing.T) {
	_, err := Build(context.Background(), testConfig(t), Options{Voice: true, Out: io.Discard, Logger: logging.Discard()})
	if err == nil {
		t.Fatalf("expected missing vendor error")
	}
}
