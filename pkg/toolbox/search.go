package toolbox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

type SearchConfig struct {
	APIKey  string `mapstructure:"api_key"`
	CX      string `mapstructure:"cx"`
	BaseURL string `mapstructure:"base_url"`
	Num     int    `mapstructure:"num"`
}

// Search queries the Google Custom Search JSON API.
type Search struct {
	cfg    SearchConfig
	client *http.Client
}

type SearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func NewSearch(cfg SearchConfig, client *http.Client) *Search {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.Num <= 0 || cfg.Num > 10 {
		cfg.Num = 5
	}
	return &Search{cfg: cfg, client: defaultClient(client)}
}

func (s *Search) Spec() tools.Spec {
	return tools.Spec{
		Name:        "search",
		Description: "Searches the web for real-time information.",
		Params: []tools.Param{
			{Name: "query", Type: tools.String, Required: true, Description: "The search query."},
		},
	}
}

// Query returns up to Num results; an empty slice means nothing was found.
func (s *Search) Query(ctx context.Context, query string) ([]SearchItem, error) {
	q := url.Values{}
	q.Set("key", s.cfg.APIKey)
	q.Set("cx", s.cfg.CX)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(s.cfg.Num))
	var payload struct {
		Items []SearchItem `json:"items"`
	}
	if err := getJSON(ctx, s.client, "search service", s.cfg.BaseURL+"?"+q.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (s *Search) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	query := strings.TrimSpace(cast.ToString(args["query"]))
	items, err := s.Query(ctx, query)
	if err != nil {
		return invoke.Result{}, err
	}
	if len(items) == 0 {
		return invoke.Result{Text: fmt.Sprintf("I found no results for %s.", query)}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top results for %s:", query)
	for i, it := range items {
		fmt.Fprintf(&b, " %d. %s (%s)", i+1, it.Title, it.Link)
	}
	return invoke.Result{Text: b.String(), URL: items[0].Link, Data: map[string]any{"items": items}}, nil
}
