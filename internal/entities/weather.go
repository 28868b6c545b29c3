package entities

import (
	"time"
)

// WeatherKind identifies what a weather query asks for
type WeatherKind int

const (
	KindCurrent  WeatherKind = iota // Temperature and conditions now
	KindForecast                    // Next ForecastWindow 3-hour points
	KindSunrise                     // Today's sunrise time
	KindSunset                      // Today's sunset time
	KindHumidity                    // Relative humidity
	KindWind                        // Wind speed and direction
	KindPressure                    // Atmospheric pressure
)

// String returns the lowercase name of the kind
func (k WeatherKind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindForecast:
		return "forecast"
	case KindSunrise:
		return "sunrise"
	case KindSunset:
		return "sunset"
	case KindHumidity:
		return "humidity"
	case KindWind:
		return "wind"
	case KindPressure:
		return "pressure"
	default:
		return "unknown"
	}
}

// Endpoint returns the upstream API path segment that serves this kind
func (k WeatherKind) Endpoint() string {
	if k == KindForecast {
		return "forecast"
	}
	return "weather"
}

// WeatherQuery is built per incoming command and discarded after formatting
type WeatherQuery struct {
	Kind WeatherKind
	City string
}

// WeatherReading is a single observation or forecast point
type WeatherReading struct {
	Temperature float64   // °C under the metric unit system
	Description string    // Localized condition text
	Timestamp   time.Time // Observation or forecast time
	Sunrise     time.Time // Zero when not reported
	Sunset      time.Time // Zero when not reported
	Humidity    int       // Percent
	Pressure    int       // hPa
	WindSpeed   float64   // m/s under the metric unit system
	WindDeg     *float64  // Nil when the service omits the direction
}

// WeatherReport is the result of a successful weather query
type WeatherReport struct {
	City     string
	Current  *WeatherReading  // Set for every kind except KindForecast
	Forecast []WeatherReading // Set for KindForecast, at most ForecastWindow entries
}

// ForecastWindow is the number of 3-hour forecast entries kept (about 24 hours)
const ForecastWindow = 8
