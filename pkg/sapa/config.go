// Package sapa assembles the assistant from configuration.
package sapa

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/harunnryd/sapa/pkg/toolbox"
)

type Config struct {
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Router        RouterConfig        `mapstructure:"router"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type AssistantConfig struct {
	Name      string   `mapstructure:"name"`
	Greet     bool     `mapstructure:"greet"`
	Intro     string   `mapstructure:"intro"`
	Farewell  string   `mapstructure:"farewell"`
	ExitWords []string `mapstructure:"exit_words"`
	Prompt    string   `mapstructure:"prompt"`
}

const (
	RouterKeyword = "keyword"
	RouterLLM     = "llm"
	RouterHybrid  = "hybrid"
)

type RouterConfig struct {
	Mode      string `mapstructure:"mode"`
	Prompt    string `mapstructure:"prompt"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
}

// AudioConfig names the external recorder and player used in voice mode.
// When Files is set, utterances are replayed from those files in order
// instead of running the recorder.
type AudioConfig struct {
	Record []string `mapstructure:"record"`
	Play   []string `mapstructure:"play"`
	Files  []string `mapstructure:"files"`
}

type ToolsConfig struct {
	Weather toolbox.WeatherConfig `mapstructure:"weather"`
	News    toolbox.NewsConfig    `mapstructure:"news"`
	Search  toolbox.SearchConfig  `mapstructure:"search"`
	Image   toolbox.ImageConfig   `mapstructure:"image"`
	Browser toolbox.BrowserConfig `mapstructure:"browser"`
	Chat    ChatConfig            `mapstructure:"chat"`
	// Disabled removes built-in tools by name.
	Disabled []string `mapstructure:"disabled"`
}

type ChatConfig struct {
	System string `mapstructure:"system"`
}

type NotifyConfig struct {
	SMS SMSConfig `mapstructure:"sms"`
}

type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
	Retries    int    `mapstructure:"retries"`
}

type ObservabilityConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
	JournalPath string `mapstructure:"journal_path"`
	EventsPath  string `mapstructure:"events_path"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadEnv loads KEY=VALUE files without overriding variables already set.
// Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := gotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads the YAML file at path over the built-in defaults.
// An empty path uses defaults and SAPA_* environment variables only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SAPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("assistant.name", "Assistant")
	v.SetDefault("assistant.greet", true)
	v.SetDefault("assistant.prompt", "You: ")
	v.SetDefault("router.mode", RouterKeyword)
	v.SetDefault("router.timeout_ms", 15000)
	v.SetDefault("audio.record", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-d", "5", "-t", "raw"})
	v.SetDefault("audio.play", []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"})
	v.SetDefault("tools.weather.api_key", "${WEATHER_API_KEY}")
	v.SetDefault("tools.weather.default_city", "Mangalpalle")
	v.SetDefault("tools.weather.units", "metric")
	v.SetDefault("tools.news.api_key", "${NEWS_API_KEY}")
	v.SetDefault("tools.news.country", "in")
	v.SetDefault("tools.news.limit", 5)
	v.SetDefault("tools.search.api_key", "${GOOGLE_API_KEY}")
	v.SetDefault("tools.search.cx", "${GOOGLE_CX}")
	v.SetDefault("tools.image.api_key", "${MONSTER_API_KEY}")
	v.SetDefault("tools.image.dir", ".")
	v.SetDefault("tools.image.poll_interval", "5s")
	v.SetDefault("tools.image.max_attempts", 30)
	v.SetDefault("notify.sms.retries", 2)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	switch c.Router.Mode {
	case RouterKeyword:
	case RouterLLM, RouterHybrid:
		if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
			return fmt.Errorf("router.mode %q requires vendors.llm.provider", c.Router.Mode)
		}
	default:
		return fmt.Errorf("router.mode must be keyword, llm or hybrid, got %q", c.Router.Mode)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Notify.SMS.Enabled {
		s := c.Notify.SMS
		if s.AccountSID == "" || s.AuthToken == "" || s.From == "" || s.To == "" {
			return fmt.Errorf("notify.sms requires account_sid, auth_token, from and to")
		}
	}
	return nil
}

// VoiceReady reports whether speech vendors are configured.
func (c *Config) VoiceReady() error {
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required for voice input")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required for voice output")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = expandAny(item)
		}
		return val
	}
	return v
}

// expandValue replaces ${VAR} in every settable string reachable from v.
func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(v.MapIndex(key).String())))
			}
		}
	}
}
