package toolbox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

type NewsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Country string `mapstructure:"country"`
	Limit   int    `mapstructure:"limit"`
}

// News reads top headlines from NewsAPI.
type News struct {
	cfg    NewsConfig
	client *http.Client
}

func NewNews(cfg NewsConfig, client *http.Client) *News {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org/v2"
	}
	if cfg.Country == "" {
		cfg.Country = "in"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	return &News{cfg: cfg, client: defaultClient(client)}
}

func (n *News) Spec() tools.Spec {
	return tools.Spec{
		Name:        "news",
		Description: "Top news headlines for a country.",
		Params: []tools.Param{
			{Name: "country", Type: tools.String, Description: "Two-letter country code"},
		},
	}
}

type newsPayload struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"articles"`
}

func (n *News) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	country := strings.ToLower(strings.TrimSpace(cast.ToString(args["country"])))
	if country == "" {
		country = n.cfg.Country
	}
	q := url.Values{}
	q.Set("country", country)
	q.Set("apiKey", n.cfg.APIKey)
	var payload newsPayload
	if err := getJSON(ctx, n.client, "news service", n.cfg.BaseURL+"/top-headlines?"+q.Encode(), nil, &payload); err != nil {
		return invoke.Result{}, err
	}
	if payload.Status != "ok" || len(payload.Articles) == 0 {
		msg := payload.Message
		if msg == "" {
			msg = "I couldn't fetch the news at the moment"
		}
		return invoke.Result{}, &invoke.ProviderError{Message: msg}
	}
	var b strings.Builder
	b.WriteString("Here are the top headlines:")
	var headlines []string
	for i, a := range payload.Articles {
		if i >= n.cfg.Limit {
			break
		}
		headlines = append(headlines, a.Title)
		fmt.Fprintf(&b, " News number %d: %s.", i+1, strings.TrimRight(a.Title, "."))
	}
	b.WriteString(" You can find more news on your browser.")
	return invoke.Result{Text: b.String(), Data: map[string]any{"headlines": headlines}}, nil
}
