package sapa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/harunnryd/sapa/pkg/channels"
	"github.com/harunnryd/sapa/pkg/conversation"
	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/redact"
	"github.com/harunnryd/sapa/pkg/runner"
	"github.com/harunnryd/sapa/pkg/scheduler"
	"github.com/harunnryd/sapa/pkg/store"
	"github.com/harunnryd/sapa/pkg/toolbox"
	"github.com/harunnryd/sapa/pkg/tools"
)

type Options struct {
	// Voice reads through the microphone and speaks replies.
	Voice bool
	// Imagine sends every utterance to the image tool.
	Imagine bool

	In        io.Reader
	Out       io.Writer
	Providers *ProviderRegistry
	// HTTPClient is used by the REST tools; nil means a 30s-timeout client.
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *slog.Logger

	// AudioSource and AudioSink override the configured commands.
	AudioSource channels.AudioSource
	AudioSink   channels.AudioSink
	// Opener overrides the system browser launcher.
	Opener toolbox.Opener
}

// Assistant is a fully wired conversation with its background services.
type Assistant struct {
	Config    Config
	Registry  *tools.Registry
	Invoker   *invoke.Invoker
	Router    intent.Router
	Scheduler *scheduler.Scheduler
	Journal   *store.Journal
	Loop      *conversation.Loop

	log    *slog.Logger
	async  *metrics.AsyncObserver
	prom   *metrics.PrometheusObserver
	events *os.File
	server *http.Server
}

// Build wires every component named in cfg. Close releases what Build
// opened when Run is not called.
func Build(ctx context.Context, cfg Config, opts Options) (_ *Assistant, err error) {
	if opts.Providers == nil {
		opts.Providers = DefaultProviders()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	log := opts.Logger
	if log == nil {
		log = logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	a := &Assistant{Config: cfg, log: log}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				log.Warn("assistant_cleanup_failed", "error", cerr)
			}
		}
	}()

	obs, err := a.buildObserver()
	if err != nil {
		return nil, err
	}
	if cfg.Observability.JournalPath != "" {
		if a.Journal, err = store.Open(ctx, cfg.Observability.JournalPath); err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}

	a.Registry = tools.NewRegistry()
	a.Invoker = invoke.New(a.Registry, invoke.Options{
		Now:      opts.Now,
		Observer: obs,
		Logger:   logging.NewComponentLogger(log, "invoker"),
	})
	a.Scheduler = scheduler.New(logging.NewComponentLogger(log, "scheduler"))

	console := channels.NewConsole(opts.In, opts.Out, channels.ConsoleConfig{Prompt: cfg.Assistant.Prompt, Speaker: cfg.Assistant.Name})
	input, output, err := a.buildChannels(cfg, opts, console)
	if err != nil {
		return nil, err
	}

	var adapter llm.LLMAdapter
	if cfg.Vendors.LLM.Provider != "" {
		adapter, err = opts.Providers.BuildLLM(ctx, cfg.Vendors.LLM, logging.NewComponentLogger(log, "llm"))
		if err != nil {
			return nil, fmt.Errorf("build llm: %w", err)
		}
		if cb, ok := adapter.(*llm.CircuitBreakerAdapter); ok {
			cb.SetObserver(obs)
		}
	}

	notify := output
	if s := cfg.Notify.SMS; s.Enabled {
		sms := channels.NewSMS(channels.SMSConfig{
			AccountSID: s.AccountSID,
			AuthToken:  s.AuthToken,
			From:       s.From,
			To:         s.To,
			Retries:    s.Retries,
		}, logging.NewComponentLogger(log, "sms"))
		notify = channels.NewMulti(output, sms)
	}

	if err := toolbox.Install(a.Registry, a.Invoker, a.builtins(cfg, opts, adapter, notify, obs)...); err != nil {
		return nil, fmt.Errorf("install tools: %w", err)
	}
	if a.Router, err = a.buildRouter(cfg, opts, adapter); err != nil {
		return nil, err
	}

	session := conversation.Session{
		Input:     input,
		Output:    output,
		Router:    a.Router,
		Invoker:   a.Invoker,
		Scheduler: a.Scheduler,
		Clock:     opts.Now,
		Logger:    logging.NewComponentLogger(log, "conversation"),
		Observer:  obs,
	}
	if a.Journal != nil {
		session.Journal = a.Journal
	}
	a.Loop, err = conversation.New(session, conversation.Config{
		Greet:     cfg.Assistant.Greet,
		Intro:     cfg.Assistant.Intro,
		Farewell:  cfg.Assistant.Farewell,
		ExitWords: cfg.Assistant.ExitWords,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Assistant) buildObserver() (metrics.Observer, error) {
	var list []metrics.Observer
	if path := a.Config.Observability.EventsPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		a.events = f
		list = append(list, metrics.NewJSONLObserver(f))
	}
	if addr := a.Config.Observability.MetricsAddr; addr != "" {
		a.prom = metrics.NewPrometheusObserver(nil)
		list = append(list, a.prom)
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.prom.Handler())
		a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	if len(list) == 0 {
		return metrics.NoopObserver{}, nil
	}
	a.async = metrics.NewAsyncObserver(metrics.NewMultiObserver(list...), 512)
	return a.async, nil
}

func (a *Assistant) buildChannels(cfg Config, opts Options, console *channels.Console) (channels.Input, channels.Output, error) {
	if !opts.Voice {
		return console, console, nil
	}
	if err := cfg.VoiceReady(); err != nil {
		return nil, nil, err
	}
	transcriber, err := opts.Providers.BuildSTT(cfg.Vendors.STT, logging.NewComponentLogger(a.log, "stt"))
	if err != nil {
		return nil, nil, fmt.Errorf("build stt: %w", err)
	}
	synth, err := opts.Providers.BuildTTS(cfg.Vendors.TTS, logging.NewComponentLogger(a.log, "tts"))
	if err != nil {
		return nil, nil, fmt.Errorf("build tts: %w", err)
	}
	source := opts.AudioSource
	switch {
	case source != nil:
	case len(cfg.Audio.Files) > 0:
		source = channels.NewFileSource(cfg.Audio.Files...)
	default:
		if len(cfg.Audio.Record) == 0 {
			return nil, nil, errors.New("audio.record command is required for voice input")
		}
		source = channels.CommandSource{Name: cfg.Audio.Record[0], Args: cfg.Audio.Record[1:]}
	}
	sink := opts.AudioSink
	if sink == nil {
		sink = channels.DiscardSink{}
		if len(cfg.Audio.Play) > 0 {
			sink = channels.CommandSink{Name: cfg.Audio.Play[0], Args: cfg.Audio.Play[1:]}
		}
	}
	in := channels.NewSpeechInput(source, transcriber, console, logging.NewComponentLogger(a.log, "speech"))
	out := channels.NewSpeechOutput(synth, sink, console, logging.NewComponentLogger(a.log, "speech"))
	return in, out, nil
}

func (a *Assistant) builtins(cfg Config, opts Options, adapter llm.LLMAdapter, notify channels.Output, obs metrics.Observer) []toolbox.Tool {
	client := opts.HTTPClient
	search := toolbox.NewSearch(cfg.Tools.Search, client)
	list := []toolbox.Tool{
		toolbox.Greeting{},
		toolbox.NewReminder(a.Scheduler, notify, opts.Now, obs, logging.NewComponentLogger(a.log, "reminder")),
		toolbox.NewImage(cfg.Tools.Image, client),
		toolbox.NewWeather(cfg.Tools.Weather, client),
		toolbox.NewNews(cfg.Tools.News, client),
		search,
		toolbox.NewBrowser(cfg.Tools.Browser, opts.Opener),
		toolbox.NewClock(opts.Now),
	}
	if adapter != nil {
		list = append(list, toolbox.NewChat(adapter, search, cfg.Tools.Chat.System, logging.NewComponentLogger(a.log, "chat")))
	}
	out := list[:0]
	for _, t := range list {
		if !slices.Contains(cfg.Tools.Disabled, t.Spec().Name) {
			out = append(out, t)
		}
	}
	return out
}

func (a *Assistant) buildRouter(cfg Config, opts Options, adapter llm.LLMAdapter) (intent.Router, error) {
	if opts.Imagine {
		if _, err := a.Registry.Lookup("image"); err != nil {
			return nil, fmt.Errorf("imagine mode: %w", err)
		}
		return intent.FixedRouter{Tool: "image", Param: "prompt"}, nil
	}
	var rules []intent.Rule
	for _, r := range toolbox.Rules(cfg.Tools.Weather.DefaultCity) {
		if _, err := a.Registry.Lookup(r.Tool); err == nil {
			rules = append(rules, r)
		}
	}
	keyword := intent.NewKeywordRouter(rules...)
	if cfg.Router.Mode == RouterKeyword {
		return keyword, nil
	}
	if adapter == nil {
		return nil, fmt.Errorf("router.mode %q requires an llm provider", cfg.Router.Mode)
	}
	classifier := intent.NewClassifierRouter(adapter, a.Registry, intent.ClassifierConfig{
		Prompt:  cfg.Router.Prompt,
		Timeout: time.Duration(cfg.Router.TimeoutMS) * time.Millisecond,
		Exclude: []string{"greeting"},
	}, logging.NewComponentLogger(a.log, "router"))
	if cfg.Router.Mode == RouterLLM {
		return classifier, nil
	}
	return intent.NewChainRouter(keyword, classifier), nil
}

// Run serves metrics if configured, converses until the loop ends, then
// drains reminders, metrics and the journal.
func (a *Assistant) Run(ctx context.Context) error {
	if a.server != nil {
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics_server_failed", "addr", a.server.Addr, "error", err)
			}
		}()
		a.log.Info("metrics_server_started", "addr", a.server.Addr)
	}
	// reminders can emit events until the scheduler has stopped
	drainers := []runner.Drainer{
		runner.DrainerFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.Scheduler.Stop(ctx)
		}),
		runner.DrainerFunc(a.drainObserver),
		runner.DrainerFunc(a.closeResources),
	}
	r := runner.NewLifecycleRunner(a.Loop.Run, runner.Hooks{
		OnStart: func() { a.log.Info("assistant_started", "tools", len(a.Registry.List())) },
		OnStop:  func() { a.log.Info("assistant_stopped") },
	}, 10*time.Second, drainers...)
	return r.Run(ctx)
}

// Close releases resources without running the loop.
func (a *Assistant) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, a.Scheduler.Stop(ctx))
		cancel()
	}
	errs = append(errs, a.drainObserver())
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *Assistant) drainObserver() error {
	if a.async == nil {
		return nil
	}
	err := a.async.Drain()
	if n := a.async.Dropped(); n > 0 {
		a.log.Warn("observer_events_dropped", "count", n)
	}
	return err
}

func (a *Assistant) closeResources() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
		a.server = nil
	}
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
		a.Journal = nil
	}
	if a.events != nil {
		errs = append(errs, a.events.Close())
		a.events = nil
	}
	return errors.Join(errs...)
}
