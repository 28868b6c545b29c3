package usecases

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/weather-bot/internal/entities"
)

// TimeLayout is used for every timestamp shown to users
const TimeLayout = "2006-01-02 15:04:05"

// UnknownDirection replaces the wind direction when the service omits it
const UnknownDirection = "неизвестно"

// FormatReport renders the report for the given kind
func FormatReport(kind entities.WeatherKind, city string, report *entities.WeatherReport) string {
	if kind == entities.KindForecast {
		return FormatForecast(city, report.Forecast)
	}
	r := report.Current
	switch kind {
	case entities.KindSunrise:
		return FormatSunrise(city, r)
	case entities.KindSunset:
		return FormatSunset(city, r)
	case entities.KindHumidity:
		return FormatHumidity(city, r)
	case entities.KindWind:
		return FormatWind(city, r)
	case entities.KindPressure:
		return FormatPressure(city, r)
	default:
		return FormatCurrent(city, r)
	}
}

// FormatCurrent renders the current temperature and conditions
func FormatCurrent(city string, r *entities.WeatherReading) string {
	return fmt.Sprintf("Текущая погода в городе %s:\n%s", city, readingLine(*r))
}

// FormatForecast writes one line per entry; the list is already truncated
func FormatForecast(city string, readings []entities.WeatherReading) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Прогноз погоды в городе %s:\n", city))
	for _, r := range readings {
		b.WriteString(readingLine(r))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSunrise renders the sunrise time in the city's zone
func FormatSunrise(city string, r *entities.WeatherReading) string {
	return fmt.Sprintf("Время восхода солнца в городе %s:\n%s", city, formatTime(r.Sunrise))
}

// FormatSunset renders the sunset time in the city's zone
func FormatSunset(city string, r *entities.WeatherReading) string {
	return fmt.Sprintf("Время захода солнца в городе %s:\n%s", city, formatTime(r.Sunset))
}

// FormatHumidity renders the relative humidity in percent
func FormatHumidity(city string, r *entities.WeatherReading) string {
	return fmt.Sprintf("Уровень влажности в городе %s:\n%d%%", city, r.Humidity)
}

// FormatWind renders wind speed and direction, or UnknownDirection when absent
func FormatWind(city string, r *entities.WeatherReading) string {
	direction := UnknownDirection
	if r.WindDeg != nil {
		direction = formatNumber(*r.WindDeg) + "°"
	}
	return fmt.Sprintf("Скорость ветра в городе %s:\n%s м/с, направление: %s", city, formatNumber(r.WindSpeed), direction)
}

// FormatPressure renders the atmospheric pressure in hPa
func FormatPressure(city string, r *entities.WeatherReading) string {
	return fmt.Sprintf("Атмосферное давление в городе %s:\n%d гПа", city, r.Pressure)
}

// readingLine renders "<time>: <temp>°C, <description>" with the temperature truncated
func readingLine(r entities.WeatherReading) string {
	return fmt.Sprintf("%s: %d°C, %s", formatTime(r.Timestamp), int(r.Temperature), r.Description)
}

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// formatNumber prints values as received, without trailing zeros
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
