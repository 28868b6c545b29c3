// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abelzeko/weather-bot/internal/entities"
	"github.com/abelzeko/weather-bot/internal/integration/openweather"
	"github.com/abelzeko/weather-bot/internal/repository"
)

// User-facing replies that do not depend on the weather data
const (
	MsgNetworkError   = "Сервис погоды сейчас недоступен. Попробуйте позже."
	MsgCityNotFound   = "Город не найден. Проверьте название и попробуйте снова."
	MsgMalformedData  = "Сервис погоды вернул некорректные данные. Попробуйте позже."
	MsgUnknownError   = "Произошла неизвестная ошибка. Попробуйте позже."
	MsgRegistryError  = "Не удалось проверить регистрацию. Попробуйте позже."
	MsgUnknownCommand = "Неправильный формат команды. Введите /help, чтобы получить список доступных команд."
)

// WeatherFetcher fetches weather data for a query
type WeatherFetcher interface {
	Fetch(ctx context.Context, query entities.WeatherQuery) (*entities.WeatherReport, error)
}

// CommandInfo describes one bot command for /help and the Telegram menu
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
}

var commands = []CommandInfo{
	{"weather", "/weather <город>", "получить текущую погоду в заданном городе."},
	{"forecast", "/forecast <город>", "получить прогноз погоды в заданном городе."},
	{"sunrise", "/sunrise <город>", "получить время восхода солнца в заданном городе."},
	{"sunset", "/sunset <город>", "получить время захода солнца в заданном городе."},
	{"humidity", "/humidity <город>", "получить уровень влажности в заданном городе."},
	{"wind", "/wind <город>", "получить текущую скорость ветра в заданном городе."},
	{"pressure", "/pressure <город>", "получить текущее атмосферное давление в заданном городе."},
	{"start", "/start", "зарегистрироваться и начать работу с ботом."},
	{"help", "/help", "получить справку и список доступных команд."},
}

var weatherCommands = map[string]entities.WeatherKind{
	"weather":  entities.KindCurrent,
	"forecast": entities.KindForecast,
	"sunrise":  entities.KindSunrise,
	"sunset":   entities.KindSunset,
	"humidity": entities.KindHumidity,
	"wind":     entities.KindWind,
	"pressure": entities.KindPressure,
}

// Commands returns every supported command in display order
func Commands() []CommandInfo {
	out := make([]CommandInfo, len(commands))
	copy(out, commands)
	return out
}

// WeatherUseCase dispatches user commands to the registry and the weather service
type WeatherUseCase struct {
	repo    repository.UserRepository
	weather WeatherFetcher
	logger  *slog.Logger
}

// NewWeatherUseCase creates a new weather use case
func NewWeatherUseCase(repo repository.UserRepository, weather WeatherFetcher, logger *slog.Logger) *WeatherUseCase {
	return &WeatherUseCase{
		repo:    repo,
		weather: weather,
		logger:  logger,
	}
}

// HandleCommand returns the reply text for a single command
func (uc *WeatherUseCase) HandleCommand(ctx context.Context, cmd entities.Command) string {
	name := strings.ToLower(strings.TrimPrefix(cmd.Name, "/"))

	if kind, ok := weatherCommands[name]; ok {
		return uc.handleWeather(ctx, name, kind, cmd.Args)
	}

	switch name {
	case "start":
		return uc.handleStart(cmd)
	case "help":
		return HelpText()
	default:
		uc.logger.Debug("unrecognized command", "command", cmd.Name, "user_id", cmd.UserID)
		return MsgUnknownCommand
	}
}

// HelpText lists every command with a one-line description
func HelpText() string {
	var b strings.Builder
	b.WriteString("Доступные команды:")
	for _, c := range commands {
		if c.Name == "start" {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%s - %s", c.Usage, c.Description))
	}
	return b.String()
}

// UsageHint is the reply for a weather command sent without a city
func UsageHint(name string) string {
	return fmt.Sprintf("Укажите город после команды, например: /%s Москва", name)
}

func (uc *WeatherUseCase) handleStart(cmd entities.Command) string {
	registered, err := uc.repo.IsRegistered(cmd.UserID)
	if err != nil {
		uc.logger.Error("registration lookup failed", "user_id", cmd.UserID, "error", err)
		return MsgRegistryError
	}

	if registered {
		return fmt.Sprintf("С возвращением, %s! Введите команду /help, чтобы получить список доступных команд.", cmd.DisplayName)
	}

	if err := uc.repo.UpsertUser(entities.User{ID: cmd.UserID, DisplayName: cmd.DisplayName}); err != nil {
		uc.logger.Error("registration failed", "user_id", cmd.UserID, "error", err)
		return MsgRegistryError
	}
	uc.logger.Info("user registered", "user_id", cmd.UserID, "display_name", cmd.DisplayName)
	return fmt.Sprintf("Привет, %s! Вы успешно зарегистрированы. Введите команду /help, чтобы получить список доступных команд.", cmd.DisplayName)
}

func (uc *WeatherUseCase) handleWeather(ctx context.Context, name string, kind entities.WeatherKind, args []string) string {
	city := strings.Join(strings.Fields(strings.Join(args, " ")), " ")
	if city == "" {
		return UsageHint(name)
	}

	report, err := uc.weather.Fetch(ctx, entities.WeatherQuery{Kind: kind, City: city})
	if err != nil {
		return uc.fetchFailure(name, city, err)
	}
	return FormatReport(kind, city, report)
}

// fetchFailure logs the cause for operators and returns the fixed reply
func (uc *WeatherUseCase) fetchFailure(name, city string, err error) string {
	kind := openweather.ErrUnknown
	var fe *openweather.FetchError
	if errors.As(err, &fe) {
		kind = fe.Kind
	}

	uc.logger.Warn("weather request failed",
		"kind", kind.String(),
		"command", name,
		"city", city,
		"error", err)

	switch kind {
	case openweather.ErrNetwork:
		return MsgNetworkError
	case openweather.ErrCityNotFound:
		return MsgCityNotFound
	case openweather.ErrMalformedResponse:
		return MsgMalformedData
	default:
		return MsgUnknownError
	}
}

// ReportRegistryStats logs the number of registered users
func (uc *WeatherUseCase) ReportRegistryStats() error {
	n, err := uc.repo.CountRegistered()
	if err != nil {
		return fmt.Errorf("failed to count registered users: %w", err)
	}
	uc.logger.Info("registry stats", "registered_users", n)
	return nil
}
