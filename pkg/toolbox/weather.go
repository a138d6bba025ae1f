package toolbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

type WeatherConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	DefaultCity string `mapstructure:"default_city"`
	Units       string `mapstructure:"units"`
}

// Weather reports current conditions from OpenWeatherMap.
type Weather struct {
	cfg    WeatherConfig
	client *http.Client
}

func NewWeather(cfg WeatherConfig, client *http.Client) *Weather {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	return &Weather{cfg: cfg, client: defaultClient(client)}
}

func (w *Weather) Spec() tools.Spec {
	return tools.Spec{
		Name:        "weather",
		Description: "Current weather conditions, temperature and humidity for a city.",
		Params: []tools.Param{
			{Name: "city", Type: tools.String, Required: true, Description: "City name, e.g. Mumbai"},
		},
	}
}

type weatherPayload struct {
	Cod  any `json:"cod"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

func (w *Weather) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	city := strings.TrimSpace(cast.ToString(args["city"]))
	if city == "" {
		city = w.cfg.DefaultCity
	}
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.cfg.APIKey)
	q.Set("units", w.cfg.Units)
	var payload weatherPayload
	err := getJSON(ctx, w.client, "weather service", w.cfg.BaseURL+"/weather?"+q.Encode(), nil, &payload)
	var statusErr *invoke.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return invoke.Result{}, fmt.Errorf("I couldn't find weather information for %s", city)
	}
	if err != nil {
		return invoke.Result{}, err
	}
	if cast.ToString(payload.Cod) == "404" {
		return invoke.Result{}, fmt.Errorf("I couldn't find weather information for %s", city)
	}
	if len(payload.Weather) == 0 {
		return invoke.Result{}, &invoke.ProviderError{Message: "weather service returned no conditions"}
	}
	desc := payload.Weather[0].Description
	text := fmt.Sprintf("The weather in %s is %s. The temperature is %.1f degrees Celsius with %s percent humidity.",
		city, desc, payload.Main.Temp, cast.ToString(payload.Main.Humidity))
	if w.cfg.Units == "imperial" {
		text = strings.Replace(text, "degrees Celsius", "degrees Fahrenheit", 1)
	}
	return invoke.Result{
		Text: text,
		Data: map[string]any{
			"city":        city,
			"description": desc,
			"temperature": payload.Main.Temp,
			"humidity":    payload.Main.Humidity,
		},
	}, nil
}
