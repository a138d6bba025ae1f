package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/sapa/pkg/channels"
	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/providers/mock"
	"github.com/harunnryd/sapa/pkg/scheduler"
	"github.com/harunnryd/sapa/pkg/tools"
)

func TestWeatherFormatsConditions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" || r.URL.Query().Get("q") != "Mumbai" || r.URL.Query().Get("units") != "metric" {
			t.Fatalf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"cod":200,"main":{"temp":30,"humidity":70},"weather":[{"description":"clear sky"}]}`))
	}))
	defer srv.Close()
	w := NewWeather(WeatherConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	res, err := w.Call(context.Background(), map[string]any{"city": "Mumbai"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	want := "The weather in Mumbai is clear sky. The temperature is 30.0 degrees Celsius with 70 percent humidity."
	if res.Text != want {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestWeatherCityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()
	w := NewWeather(WeatherConfig{BaseURL: srv.URL}, srv.Client())
	_, err := w.Call(context.Background(), map[string]any{"city": "Atlantis"})
	if err == nil || err.Error() != "I couldn't find weather information for Atlantis" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestWeatherNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()
	w := NewWeather(WeatherConfig{APIKey: "secret", BaseURL: base}, nil)
	_, err := w.Call(context.Background(), map[string]any{"city": "Pune"})
	var netErr *invoke.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if strings.Contains(invoke.Describe(err), "secret") {
		t.Fatalf("api key leaked in description")
	}
}

func TestNewsTopFiveHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("country") != "in" {
			t.Fatalf("expected default country in, got %s", r.URL.RawQuery)
		}
		var articles []map[string]string
		for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
			articles = append(articles, map[string]string{"title": title})
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "articles": articles})
	}))
	defer srv.Close()
	n := NewNews(NewsConfig{BaseURL: srv.URL}, srv.Client())
	res, err := n.Call(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(res.Text, "News number 5: E.") || strings.Contains(res.Text, "News number 6") {
		t.Fatalf("unexpected headlines %q", res.Text)
	}
}

func TestNewsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"apiKeyInvalid"}`))
	}))
	defer srv.Close()
	_, err := NewNews(NewsConfig{BaseURL: srv.URL}, srv.Client()).Call(context.Background(), nil)
	var perr *invoke.ProviderError
	if !errors.As(err, &perr) || perr.Message != "apiKeyInvalid" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func searchServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("num") != "5" || r.URL.Query().Get("cx") != "cx1" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev","snippet":"The Go language"}]}`))
	}))
}

func TestSearchCall(t *testing.T) {
	srv := searchServer(t)
	defer srv.Close()
	s := NewSearch(SearchConfig{APIKey: "k", CX: "cx1", BaseURL: srv.URL}, srv.Client())
	res, err := s.Call(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.URL != "https://go.dev" || !strings.Contains(res.Text, "1. Go (https://go.dev)") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestChatWebSearchRoundTrip(t *testing.T) {
	srv := searchServer(t)
	defer srv.Close()
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "web_search", Arguments: map[string]any{"query": "go release"}}}},
		{Text: "Go is at go.dev."},
	}})
	chat := NewChat(adapter, NewSearch(SearchConfig{CX: "cx1", BaseURL: srv.URL}, srv.Client()), "", logging.Discard())
	res, err := chat.Call(context.Background(), map[string]any{"message": "what is the latest go"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Text != "Go is at go.dev." {
		t.Fatalf("unexpected text %q", res.Text)
	}
	calls := adapter.Calls()
	if len(calls) != 2 || !strings.Contains(calls[1].Messages[2].Content, "https://go.dev") {
		t.Fatalf("search result not fed back: %+v", calls)
	}
}

func TestBrowserOpensKnownAndDomainSites(t *testing.T) {
	var opened []string
	b := NewBrowser(BrowserConfig{Sites: map[string]string{"Docs": "https://go.dev/doc"}}, func(ctx context.Context, url string) error {
		opened = append(opened, url)
		return nil
	})
	res, err := b.Call(context.Background(), map[string]any{"site": "YouTube"})
	if err != nil || res.Text != "Opening Youtube." {
		t.Fatalf("unexpected result %q %v", res.Text, err)
	}
	if _, err := b.Call(context.Background(), map[string]any{"site": "docs"}); err != nil {
		t.Fatalf("custom site: %v", err)
	}
	if _, err := b.Call(context.Background(), map[string]any{"site": "example.org"}); err != nil {
		t.Fatalf("domain: %v", err)
	}
	if _, err := b.Call(context.Background(), map[string]any{"site": "my bank"}); err == nil {
		t.Fatalf("expected unknown site error")
	}
	want := []string{"https://www.youtube.com", "https://go.dev/doc", "https://example.org"}
	if strings.Join(opened, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected opened urls %v", opened)
	}
}

func TestClockFormats(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return now })
	res, _ := c.Call(context.Background(), map[string]any{"format": "time"})
	if res.Text != "The current time is 03:04 PM" {
		t.Fatalf("unexpected time %q", res.Text)
	}
	res, _ = c.Call(context.Background(), map[string]any{"format": "date"})
	if res.Text != "Today is Sunday, March 10, 2024" {
		t.Fatalf("unexpected date %q", res.Text)
	}
}

type captureOutput struct {
	mu    sync.Mutex
	texts []string
}

func (c *captureOutput) Write(ctx context.Context, text string) error {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return nil
}

func TestReminderSchedulesAndReplies(t *testing.T) {
	now := time.Date(2024, 3, 20, 16, 0, 0, 0, time.Local)
	sched := scheduler.New(logging.Discard(), scheduler.WithClock(func() time.Time { return now }))
	defer sched.Stop(context.Background())
	out := &captureOutput{}
	r := NewReminder(sched, out, func() time.Time { return now }, nil, logging.Discard())
	res, err := r.Call(context.Background(), map[string]any{"hour": 15, "minute": 30, "task": "call John"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Text != "Okay, I will remind you to call John at 03:30 PM." {
		t.Fatalf("unexpected reply %q", res.Text)
	}
	pending := sched.Pending()
	if len(pending) != 1 || !pending[0].At.Equal(now.Add(23*time.Hour+30*time.Minute)) {
		t.Fatalf("expected one task tomorrow at 15:30, got %+v", pending)
	}
	pending[0].Cancel()
}

func TestReminderRejectsOutOfRange(t *testing.T) {
	sched := scheduler.New(logging.Discard())
	defer sched.Stop(context.Background())
	r := NewReminder(sched, &captureOutput{}, nil, nil, logging.Discard())
	if _, err := r.Call(context.Background(), map[string]any{"hour": 99, "minute": 0, "task": "x"}); err == nil {
		t.Fatalf("expected hour range error")
	}
	if len(sched.Pending()) != 0 {
		t.Fatalf("nothing should be scheduled")
	}
	if got := reminderMessage("stretch"); got != "Reminder: It's time to stretch!" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestImageEndToEndThroughInvoker(t *testing.T) {
	var polls int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generate/txt2img":
			if r.Header.Get("Authorization") != "Bearer mk" {
				t.Fatalf("missing bearer token")
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["steps"] != float64(40) || body["style"] != "photographic" || body["safe_filter"] != true {
				t.Fatalf("unexpected payload %v", body)
			}
			w.Write([]byte(`{"process_id":"job-1"}`))
		case r.URL.Path == "/status/job-1":
			polls++
			if polls < 2 {
				w.Write([]byte(`{"status":"IN_PROGRESS"}`))
				return
			}
			w.Write([]byte(`{"status":"COMPLETED","result":{"output":["` + srv.URL + `/files/out.png"]}}`))
		case r.URL.Path == "/files/out.png":
			w.Write([]byte("PNGDATA"))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	img := NewImage(ImageConfig{APIKey: "mk", BaseURL: srv.URL, Dir: dir}, srv.Client())
	img.newID = func() string { return "abcdef12-0000-0000-0000-000000000000" }
	reg := tools.NewRegistry()
	var slept int
	inv := invoke.New(reg, invoke.Options{
		Sleep:  func(context.Context, time.Duration) error { slept++; return nil },
		Logger: logging.Discard(),
	})
	if err := Install(reg, inv, img); err != nil {
		t.Fatalf("install: %v", err)
	}
	got := inv.Invoke(context.Background(), intent.Intent{Tool: "image", Args: map[string]any{"prompt": "a red fox"}})
	if got.Status != invoke.StatusCompleted || got.Polls != 2 || slept != 2 {
		t.Fatalf("unexpected invocation %+v", got)
	}
	if got.Artifact == nil || got.Artifact.Path != filepath.Join(dir, "img_abcdef.png") {
		t.Fatalf("unexpected artifact %+v", got.Artifact)
	}
	data, err := os.ReadFile(got.Artifact.Path)
	if err != nil || string(data) != "PNGDATA" {
		t.Fatalf("unexpected file content %q %v", data, err)
	}
}

func TestImageDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	img := NewImage(ImageConfig{BaseURL: srv.URL, Dir: t.TempDir()}, srv.Client())
	_, err := img.Persist(context.Background(), invoke.Result{URL: srv.URL + "/x.png"})
	var derr *invoke.DownloadError
	if !errors.As(err, &derr) || !strings.Contains(err.Error(), "HTTP 403") {
		t.Fatalf("expected download error, got %v", err)
	}
}

func TestImagePollFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"FAILED","message":"prompt rejected"}`))
	}))
	defer srv.Close()
	img := NewImage(ImageConfig{BaseURL: srv.URL}, srv.Client())
	pr, err := img.Poll(context.Background(), "job")
	if err != nil || pr.Status != invoke.PollFailed || pr.Message != "prompt rejected" {
		t.Fatalf("unexpected poll result %+v %v", pr, err)
	}
}

func TestRulesRouteBuiltins(t *testing.T) {
	r := intent.NewKeywordRouter(Rules("Mangalpalle")...)
	cases := map[string]string{
		"hello":                              "greeting",
		"what's the weather in Mumbai":       "weather",
		"set a reminder for 3:30 PM to call": "reminder",
		"remind me to check the time at 5pm": "reminder",
		"open google":                        "browser",
		"what time is it":                    "clock",
		"tell me the news":                   "news",
		"draw a castle at sunset":            "image",
		"tell me about black holes":          "chat",
	}
	for text, want := range cases {
		in, err := r.Route(context.Background(), text)
		if err != nil || in.Tool != want {
			t.Fatalf("%q: expected %s, got %+v %v", text, want, in, err)
		}
	}
}

var _ channels.Output = (*captureOutput)(nil)
