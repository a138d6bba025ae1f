package toolbox

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

type BrowserConfig struct {
	Sites map[string]string `mapstructure:"sites"`
	// Opener overrides the platform command, e.g. ["firefox"].
	Opener []string `mapstructure:"opener"`
}

// Opener launches url in the user's browser.
type Opener func(ctx context.Context, url string) error

// Browser opens known sites by name, or any host that looks like a domain.
type Browser struct {
	sites map[string]string
	open  Opener
}

func NewBrowser(cfg BrowserConfig, open Opener) *Browser {
	sites := map[string]string{
		"google":  "https://www.google.com",
		"youtube": "https://www.youtube.com",
	}
	for k, v := range cfg.Sites {
		sites[strings.ToLower(k)] = v
	}
	if open == nil {
		open = commandOpener(cfg.Opener)
	}
	return &Browser{sites: sites, open: open}
}

func (b *Browser) Spec() tools.Spec {
	return tools.Spec{
		Name:        "browser",
		Description: "Opens a website in the browser.",
		Params: []tools.Param{
			{Name: "site", Type: tools.String, Required: true, Description: "Site name (google, youtube) or domain"},
		},
	}
}

func (b *Browser) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	site := strings.TrimSpace(cast.ToString(args["site"]))
	key := strings.ToLower(site)
	target, ok := b.sites[key]
	if !ok {
		switch {
		case strings.HasPrefix(key, "http://"), strings.HasPrefix(key, "https://"):
			target = site
		case strings.Contains(key, ".") && !strings.Contains(key, " "):
			target = "https://" + key
		default:
			return invoke.Result{}, fmt.Errorf("I don't know the site %q", site)
		}
	}
	if err := b.open(ctx, target); err != nil {
		return invoke.Result{}, fmt.Errorf("open browser: %w", err)
	}
	name := site
	if ok {
		name = cases.Title(language.English).String(key)
	}
	return invoke.Result{Text: fmt.Sprintf("Opening %s.", name), URL: target}, nil
}

func commandOpener(custom []string) Opener {
	return func(ctx context.Context, url string) error {
		var name string
		var args []string
		switch {
		case len(custom) > 0:
			name, args = custom[0], append(append([]string(nil), custom[1:]...), url)
		case runtime.GOOS == "darwin":
			name, args = "open", []string{url}
		case runtime.GOOS == "windows":
			name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
		default:
			name, args = "xdg-open", []string{url}
		}
		return exec.CommandContext(ctx, name, args...).Start()
	}
}
