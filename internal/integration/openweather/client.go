// Package openweather is a client for the OpenWeatherMap 2.5 REST API
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abelzeko/weather-bot/internal/config"
	"github.com/abelzeko/weather-bot/internal/entities"
)

// Client issues one GET per query against the weather service
type Client struct {
	BaseURL    string
	APIKey     string
	Units      string
	Lang       string
	Location   *time.Location // Fallback zone when the body has no offset
	HTTPClient *http.Client
	Now        func() time.Time
	logger     *slog.Logger
}

// NewClient creates a client from the application config
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		BaseURL:  strings.TrimRight(cfg.OpenWeatherBaseURL, "/"),
		APIKey:   cfg.OpenWeatherAPIKey,
		Units:    cfg.WeatherUnits,
		Lang:     cfg.WeatherLang,
		Location: loc,
		HTTPClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		Now:    time.Now,
		logger: logger,
	}
}

// Fetch runs the query and returns the parsed report or a *FetchError
func (c *Client) Fetch(ctx context.Context, query entities.WeatherQuery) (*entities.WeatherReport, error) {
	endpoint := query.Kind.Endpoint()
	fail := func(kind ErrorKind, err error) error {
		return &FetchError{Kind: kind, Endpoint: endpoint, City: query.City, Err: err}
	}

	city := strings.TrimSpace(query.City)
	if city == "" {
		return nil, fail(ErrUnknown, errors.New("empty city"))
	}

	status, body, err := c.get(ctx, endpoint, city)
	if err != nil {
		return nil, fail(ErrNetwork, err)
	}

	report := &entities.WeatherReport{City: city}
	if query.Kind == entities.KindForecast {
		report.Forecast, err = c.parseForecast(status, body)
	} else {
		report.Current, err = c.parseCurrent(query.Kind, status, body)
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Endpoint, fe.City = endpoint, city
			return nil, fe
		}
		return nil, fail(ErrUnknown, err)
	}
	return report, nil
}

// requestURL builds <base>/<endpoint>?q=&appid=&units=&lang=
func (c *Client) requestURL(endpoint, city string) string {
	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.APIKey)
	params.Set("units", c.Units)
	params.Set("lang", c.Lang)
	return c.BaseURL + "/" + endpoint + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, endpoint, city string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(endpoint, city), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// url.Error would echo the API key back through the query string
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read body: %w", err)
	}

	c.logger.Debug("weather api response",
		"endpoint", endpoint,
		"city", city,
		"status", resp.StatusCode,
		"duration", time.Since(start))
	return resp.StatusCode, body, nil
}

// checkStatus maps the body's cod, or the HTTP status when cod is absent
func checkStatus(httpStatus int, cod statusCode, message json.RawMessage) error {
	status := httpStatus
	if cod.set {
		status = cod.value
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return &FetchError{Kind: ErrCityNotFound, Err: fmt.Errorf("service reported %d: %s", status, message)}
	default:
		return &FetchError{Kind: ErrUnknown, Err: fmt.Errorf("service reported %d: %s", status, message)}
	}
}

func malformed(field string) error {
	return &FetchError{Kind: ErrMalformedResponse, Err: fmt.Errorf("missing field %s", field)}
}

func (c *Client) parseCurrent(kind entities.WeatherKind, httpStatus int, body []byte) (*entities.WeatherReading, error) {
	var data currentResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, c.undecodable(httpStatus, err)
	}
	if err := checkStatus(httpStatus, data.Cod, data.Message); err != nil {
		return nil, err
	}

	loc := c.zone(data.Timezone)
	reading := &entities.WeatherReading{}
	if data.Dt != nil {
		reading.Timestamp = time.Unix(*data.Dt, 0).In(loc)
	} else {
		reading.Timestamp = c.Now().In(loc)
	}

	switch kind {
	case entities.KindCurrent:
		if data.Main == nil || data.Main.Temp == nil {
			return nil, malformed("main.temp")
		}
		desc, ok := description(data.Weather)
		if !ok {
			return nil, malformed("weather[0].description")
		}
		reading.Temperature, reading.Description = *data.Main.Temp, desc
	case entities.KindSunrise:
		if data.Sys == nil || data.Sys.Sunrise == nil {
			return nil, malformed("sys.sunrise")
		}
		reading.Sunrise = time.Unix(*data.Sys.Sunrise, 0).In(loc)
	case entities.KindSunset:
		if data.Sys == nil || data.Sys.Sunset == nil {
			return nil, malformed("sys.sunset")
		}
		reading.Sunset = time.Unix(*data.Sys.Sunset, 0).In(loc)
	case entities.KindHumidity:
		if data.Main == nil || data.Main.Humidity == nil {
			return nil, malformed("main.humidity")
		}
		reading.Humidity = *data.Main.Humidity
	case entities.KindPressure:
		if data.Main == nil || data.Main.Pressure == nil {
			return nil, malformed("main.pressure")
		}
		reading.Pressure = *data.Main.Pressure
	case entities.KindWind:
		if data.Wind == nil || data.Wind.Speed == nil {
			return nil, malformed("wind.speed")
		}
		reading.WindSpeed, reading.WindDeg = *data.Wind.Speed, data.Wind.Deg
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
	return reading, nil
}

func (c *Client) parseForecast(httpStatus int, body []byte) ([]entities.WeatherReading, error) {
	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, c.undecodable(httpStatus, err)
	}
	if err := checkStatus(httpStatus, data.Cod, data.Message); err != nil {
		return nil, err
	}
	if len(data.List) == 0 {
		return nil, malformed("list")
	}

	var offset *int
	if data.City != nil {
		offset = data.City.Timezone
	}
	loc := c.zone(offset)

	entries := data.List
	if len(entries) > entities.ForecastWindow {
		entries = entries[:entities.ForecastWindow]
	}

	readings := make([]entities.WeatherReading, 0, len(entries))
	for i, e := range entries {
		if e.Dt == nil {
			return nil, malformed(fmt.Sprintf("list[%d].dt", i))
		}
		if e.Main == nil || e.Main.Temp == nil {
			return nil, malformed(fmt.Sprintf("list[%d].main.temp", i))
		}
		desc, ok := description(e.Weather)
		if !ok {
			return nil, malformed(fmt.Sprintf("list[%d].weather[0].description", i))
		}
		readings = append(readings, entities.WeatherReading{
			Temperature: *e.Main.Temp,
			Description: desc,
			Timestamp:   time.Unix(*e.Dt, 0).In(loc),
		})
	}
	return readings, nil
}

// undecodable classifies a body that is not the expected JSON shape.
// A plain 404 page still means the city is unknown.
func (c *Client) undecodable(httpStatus int, err error) error {
	if httpStatus == http.StatusNotFound {
		return &FetchError{Kind: ErrCityNotFound, Err: err}
	}
	return &FetchError{Kind: ErrUnknown, Err: fmt.Errorf("failed to decode body (status %d): %w", httpStatus, err)}
}

func (c *Client) zone(offset *int) *time.Location {
	if offset == nil {
		if c.Location == nil {
			return time.Local
		}
		return c.Location
	}
	return time.FixedZone("", *offset)
}
