package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

type ImageConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Dir           string        `mapstructure:"dir"`
	Samples       int           `mapstructure:"samples"`
	Steps         int           `mapstructure:"steps"`
	GuidanceScale float64       `mapstructure:"guidance_scale"`
	SafeFilter    *bool         `mapstructure:"safe_filter"`
	Style         string        `mapstructure:"style"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

// Image generates pictures through MonsterAPI txt2img and saves them locally.
type Image struct {
	cfg    ImageConfig
	client *http.Client
	newID  func() string
}

func NewImage(cfg ImageConfig, client *http.Client) *Image {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.monsterapi.ai/v1"
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 1
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 40
	}
	if cfg.GuidanceScale <= 0 {
		cfg.GuidanceScale = 7
	}
	if cfg.SafeFilter == nil {
		on := true
		cfg.SafeFilter = &on
	}
	if cfg.Style == "" {
		cfg.Style = "photographic"
	}
	return &Image{cfg: cfg, client: defaultClient(client), newID: uuid.NewString}
}

func (i *Image) Spec() tools.Spec {
	return tools.Spec{
		Name:        "image",
		Description: "Generates an image from a text prompt and saves it as a PNG.",
		Params: []tools.Param{
			{Name: "prompt", Type: tools.String, Required: true, Description: "What the image should show"},
		},
	}
}

func (i *Image) PollPolicy() invoke.PollPolicy {
	return invoke.PollPolicy{Interval: i.cfg.PollInterval, MaxAttempts: i.cfg.MaxAttempts}
}

func (i *Image) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + i.cfg.APIKey}
}

func (i *Image) Submit(ctx context.Context, args map[string]any) (string, error) {
	payload := map[string]any{
		"prompt":         strings.TrimSpace(cast.ToString(args["prompt"])),
		"samples":        i.cfg.Samples,
		"steps":          i.cfg.Steps,
		"guidance_scale": i.cfg.GuidanceScale,
		"safe_filter":    *i.cfg.SafeFilter,
		"style":          i.cfg.Style,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.BaseURL+"/generate/txt2img", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range i.headers() {
		req.Header.Set(k, v)
	}
	var out struct {
		ProcessID string `json:"process_id"`
	}
	if err := doJSON(i.client, "image service", req, &out); err != nil {
		return "", err
	}
	return out.ProcessID, nil
}

type imageStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		Output []string `json:"output"`
	} `json:"result"`
}

func (i *Image) Poll(ctx context.Context, jobID string) (invoke.PollResult, error) {
	var st imageStatus
	if err := getJSON(ctx, i.client, "image service", i.cfg.BaseURL+"/status/"+url.PathEscape(jobID), i.headers(), &st); err != nil {
		return invoke.PollResult{}, err
	}
	switch strings.ToUpper(st.Status) {
	case "COMPLETED":
		if len(st.Result.Output) == 0 {
			return invoke.PollResult{}, &invoke.ProviderError{Message: "No image URL found"}
		}
		link := st.Result.Output[0]
		return invoke.PollResult{
			Status: invoke.PollCompleted,
			Result: invoke.Result{Text: "Your image is ready: " + link, URL: link},
		}, nil
	case "FAILED":
		msg := st.Message
		if msg == "" {
			msg = "No details"
		}
		return invoke.PollResult{Status: invoke.PollFailed, Message: msg}, nil
	}
	return invoke.PollResult{Status: invoke.PollRunning}, nil
}

// Persist downloads the generated image to img_<6 hex>.png in the output dir.
func (i *Image) Persist(ctx context.Context, res invoke.Result) (string, error) {
	if res.URL == "" {
		return "", &invoke.DownloadError{Err: fmt.Errorf("no image URL")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &invoke.DownloadError{URL: res.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if err := os.MkdirAll(i.cfg.Dir, 0o755); err != nil {
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	name := "img_" + strings.ReplaceAll(i.newID(), "-", "")[:6] + ".png"
	path := filepath.Join(i.cfg.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &invoke.DownloadError{URL: res.URL, Err: err}
	}
	return path, nil
}
