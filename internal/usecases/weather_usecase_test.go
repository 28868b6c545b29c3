package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/weather-bot/internal/config"
	"github.com/abelzeko/weather-bot/internal/entities"
	"github.com/abelzeko/weather-bot/internal/integration/openweather"
	"github.com/abelzeko/weather-bot/internal/logging"
	"github.com/abelzeko/weather-bot/internal/repository"
)

const berlinBody = `{"cod":200,"main":{"temp":21.7,"humidity":60,"pressure":1012},"weather":[{"description":"clear sky"}],"wind":{"speed":3.4,"deg":180},"sys":{"sunrise":1700000000,"sunset":1700030000}}`

// fakeFetcher records queries and returns a canned result
type fakeFetcher struct {
	report  *entities.WeatherReport
	err     error
	queries []entities.WeatherQuery
}

func (f *fakeFetcher) Fetch(_ context.Context, q entities.WeatherQuery) (*entities.WeatherReport, error) {
	f.queries = append(f.queries, q)
	return f.report, f.err
}

// memoryRepo is an in-memory UserRepository
type memoryRepo struct {
	users   map[int64]entities.User
	upserts int
	err     error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]entities.User{}}
}

func (m *memoryRepo) UpsertUser(u entities.User) error {
	if m.err != nil {
		return m.err
	}
	m.upserts++
	u.Registered = true
	m.users[u.ID] = u
	return nil
}

func (m *memoryRepo) IsRegistered(id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.users[id].Registered, nil
}

func (m *memoryRepo) GetUser(id int64) (entities.User, error) {
	u, ok := m.users[id]
	if !ok {
		return entities.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryRepo) CountRegistered() (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.users), nil
}

func (m *memoryRepo) Close() error { return nil }

func newUseCase(repo repository.UserRepository, fetcher WeatherFetcher) *WeatherUseCase {
	return NewWeatherUseCase(repo, fetcher, logging.Discard())
}

// serverUseCase wires the real client to a fake upstream
func serverUseCase(t *testing.T, handler http.HandlerFunc) *WeatherUseCase {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := openweather.NewClient(config.Config{
		OpenWeatherBaseURL: server.URL,
		OpenWeatherAPIKey:  "key",
		WeatherUnits:       "metric",
		WeatherLang:        "ru",
		Location:           time.UTC,
	}, logging.Discard())
	return newUseCase(newMemoryRepo(), client)
}

func staticBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func weatherCmd(name string, args ...string) entities.Command {
	return entities.Command{Name: name, Args: args, ChatID: 1, UserID: 1, DisplayName: "anna"}
}

func TestWeatherCommandsWithoutCityNeverFetch(t *testing.T) {
	for name := range weatherCommands {
		t.Run(name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			uc := newUseCase(newMemoryRepo(), fetcher)

			assert.Equal(t, UsageHint(name), uc.HandleCommand(context.Background(), weatherCmd(name)))
			assert.Equal(t, UsageHint(name), uc.HandleCommand(context.Background(), weatherCmd(name, " ", "")))
			assert.Empty(t, fetcher.queries)
			assert.Contains(t, UsageHint(name), "/"+name)
		})
	}
}

func TestWeatherCommandJoinsMultiWordCity(t *testing.T) {
	fetcher := &fakeFetcher{report: &entities.WeatherReport{Current: &entities.WeatherReading{Humidity: 40}}}
	uc := newUseCase(newMemoryRepo(), fetcher)

	reply := uc.HandleCommand(context.Background(), weatherCmd("humidity", "Нижний", "Новгород"))

	require.Len(t, fetcher.queries, 1)
	assert.Equal(t, entities.WeatherQuery{Kind: entities.KindHumidity, City: "Нижний Новгород"}, fetcher.queries[0])
	assert.Contains(t, reply, "Нижний Новгород")
	assert.Contains(t, reply, "40%")
}

func TestCommandKindMapping(t *testing.T) {
	for name, kind := range weatherCommands {
		fetcher := &fakeFetcher{report: &entities.WeatherReport{Current: &entities.WeatherReading{}}}
		uc := newUseCase(newMemoryRepo(), fetcher)

		uc.HandleCommand(context.Background(), weatherCmd(name, "Berlin"))
		require.Len(t, fetcher.queries, 1, name)
		assert.Equal(t, kind, fetcher.queries[0].Kind, name)
	}
}

func TestWeatherFlowsAgainstUpstream(t *testing.T) {
	uc := serverUseCase(t, staticBody(berlinBody))
	ctx := context.Background()

	reply := uc.HandleCommand(ctx, weatherCmd("weather", "Berlin"))
	assert.Contains(t, reply, "Berlin")
	assert.Contains(t, reply, "21°C")
	assert.NotContains(t, reply, "21.7")
	assert.Contains(t, reply, "clear sky")

	assert.Contains(t, uc.HandleCommand(ctx, weatherCmd("humidity", "Berlin")), "60%")
	assert.Contains(t, uc.HandleCommand(ctx, weatherCmd("pressure", "Berlin")), "1012")
	assert.Contains(t, uc.HandleCommand(ctx, weatherCmd("wind", "Berlin")), "3.4 м/с, направление: 180°")

	sunrise := uc.HandleCommand(ctx, weatherCmd("sunrise", "Berlin"))
	assert.Contains(t, sunrise, time.Unix(1700000000, 0).UTC().Format(TimeLayout))
	sunset := uc.HandleCommand(ctx, weatherCmd("sunset", "Berlin"))
	assert.Contains(t, sunset, time.Unix(1700030000, 0).UTC().Format(TimeLayout))
}

func TestForecastFlowEmitsEightLines(t *testing.T) {
	entries := make([]string, 10)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"dt":%d,"main":{"temp":5.9},"weather":[{"description":"rain"}]}`, 1700000000+i*10800)
	}
	body := fmt.Sprintf(`{"cod":"200","list":[%s]}`, strings.Join(entries, ","))
	uc := serverUseCase(t, staticBody(body))

	reply := uc.HandleCommand(context.Background(), weatherCmd("forecast", "Berlin"))

	lines := strings.Split(reply, "\n")
	require.Len(t, lines, 1+entities.ForecastWindow)
	assert.Contains(t, lines[0], "Berlin")
	for _, line := range lines[1:] {
		assert.True(t, strings.HasSuffix(line, ": 5°C, rain"), line)
	}
}

func TestNotFoundForEveryWeatherCommand(t *testing.T) {
	uc := serverUseCase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		if strings.HasSuffix(r.URL.Path, "/forecast") {
			io.WriteString(w, `{"cod":"404","message":"city not found"}`)
			return
		}
		io.WriteString(w, `{"cod":404,"message":"city not found"}`)
	})

	for name := range weatherCommands {
		assert.Equal(t, MsgCityNotFound, uc.HandleCommand(context.Background(), weatherCmd(name, "Atlantis")), name)
	}
}

func TestMissingTemperatureIsMalformed(t *testing.T) {
	uc := serverUseCase(t, staticBody(`{"cod":200,"main":{"humidity":60},"weather":[{"description":"clear sky"}]}`))

	assert.Equal(t, MsgMalformedData, uc.HandleCommand(context.Background(), weatherCmd("weather", "Berlin")))
}

func TestTimeoutAsksToTryLater(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := openweather.NewClient(config.Config{OpenWeatherBaseURL: server.URL, OpenWeatherAPIKey: "key"}, logging.Discard())
	client.HTTPClient.Timeout = 50 * time.Millisecond
	uc := newUseCase(newMemoryRepo(), client)

	assert.Equal(t, MsgNetworkError, uc.HandleCommand(context.Background(), weatherCmd("weather", "Berlin")))
}

func TestFetchErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&openweather.FetchError{Kind: openweather.ErrNetwork, Err: errors.New("dial")}, MsgNetworkError},
		{&openweather.FetchError{Kind: openweather.ErrCityNotFound, Err: errors.New("404")}, MsgCityNotFound},
		{&openweather.FetchError{Kind: openweather.ErrMalformedResponse, Err: errors.New("main.temp")}, MsgMalformedData},
		{&openweather.FetchError{Kind: openweather.ErrUnknown, Err: errors.New("boom")}, MsgUnknownError},
		{fmt.Errorf("wrapped: %w", &openweather.FetchError{Kind: openweather.ErrNetwork, Err: errors.New("x")}), MsgNetworkError},
		{errors.New("not a fetch error"), MsgUnknownError},
	}
	for _, tt := range tests {
		uc := newUseCase(newMemoryRepo(), &fakeFetcher{err: tt.err})
		reply := uc.HandleCommand(context.Background(), weatherCmd("weather", "Berlin"))
		assert.Equal(t, tt.want, reply)
		assert.NotContains(t, reply, tt.err.Error())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	uc := newUseCase(repo, &fakeFetcher{})
	cmd := entities.Command{Name: "start", ChatID: 10, UserID: 10, DisplayName: "anna"}

	first := uc.HandleCommand(context.Background(), cmd)
	second := uc.HandleCommand(context.Background(), cmd)
	third := uc.HandleCommand(context.Background(), cmd)

	assert.Contains(t, first, "успешно зарегистрированы")
	assert.Contains(t, second, "С возвращением")
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, third)
	for _, reply := range []string{first, second} {
		assert.Contains(t, reply, "anna")
		assert.Contains(t, reply, "/help")
	}

	assert.Len(t, repo.users, 1)
	assert.Equal(t, 1, repo.upserts)
	assert.True(t, repo.users[10].Registered)
}

func TestStartWithSQLiteRegistry(t *testing.T) {
	repo, err := repository.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "users.db"), logging.Discard())
	require.NoError(t, err)
	defer repo.Close()

	uc := newUseCase(repo, &fakeFetcher{})
	cmd := entities.Command{Name: "start", UserID: 5, DisplayName: "ivan"}
	for i := 0; i < 4; i++ {
		uc.HandleCommand(context.Background(), cmd)
	}

	n, err := repo.CountRegistered()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	user, err := repo.GetUser(5)
	require.NoError(t, err)
	assert.True(t, user.Registered)
	assert.Equal(t, "ivan", user.DisplayName)
}

func TestStartRegistryFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("disk full")
	uc := newUseCase(repo, &fakeFetcher{})

	assert.Equal(t, MsgRegistryError, uc.HandleCommand(context.Background(), entities.Command{Name: "start", UserID: 1}))
}

func TestHelpListsEveryCommand(t *testing.T) {
	uc := newUseCase(newMemoryRepo(), &fakeFetcher{})

	help := uc.HandleCommand(context.Background(), entities.Command{Name: "help"})
	assert.True(t, strings.HasPrefix(help, "Доступные команды:"))
	for name := range weatherCommands {
		assert.Contains(t, help, "/"+name+" <город>")
	}
	assert.Contains(t, help, "/help - ")
}

func TestUnrecognizedCommand(t *testing.T) {
	repo := newMemoryRepo()
	fetcher := &fakeFetcher{}
	uc := newUseCase(repo, fetcher)

	for _, name := range []string{"", "weathr", "settings", "start_now"} {
		assert.Equal(t, MsgUnknownCommand, uc.HandleCommand(context.Background(), weatherCmd(name, "Berlin")), name)
	}
	assert.Empty(t, fetcher.queries)
	assert.Empty(t, repo.users)
}

func TestCommandNameIsCaseInsensitive(t *testing.T) {
	uc := newUseCase(newMemoryRepo(), &fakeFetcher{})
	assert.Equal(t, HelpText(), uc.HandleCommand(context.Background(), entities.Command{Name: "/HELP"}))
}

func TestReportRegistryStats(t *testing.T) {
	repo := newMemoryRepo()
	require.NoError(t, repo.UpsertUser(entities.User{ID: 1}))
	uc := newUseCase(repo, &fakeFetcher{})
	assert.NoError(t, uc.ReportRegistryStats())

	repo.err = errors.New("locked")
	assert.Error(t, uc.ReportRegistryStats())
}

func TestCommandsReturnsCopy(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 9)
	cmds[0].Name = "changed"
	assert.Equal(t, "weather", Commands()[0].Name)
}

// logRecords decodes every JSON log line written to buf
func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestFetchFailureLogsDiagnostic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"network", &openweather.FetchError{Kind: openweather.ErrNetwork, Endpoint: "weather", City: "Atlantis", Err: errors.New("dial tcp: connection refused")}, "network"},
		{"not found", &openweather.FetchError{Kind: openweather.ErrCityNotFound, Endpoint: "weather", City: "Atlantis", Err: errors.New("service reported 404")}, "city_not_found"},
		{"malformed", &openweather.FetchError{Kind: openweather.ErrMalformedResponse, Endpoint: "weather", City: "Atlantis", Err: errors.New("missing field wind.speed")}, "malformed_response"},
		{"unknown", &openweather.FetchError{Kind: openweather.ErrUnknown, Endpoint: "weather", City: "Atlantis", Err: errors.New("service reported 401")}, "unknown"},
		{"plain error", errors.New("something else broke"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			uc := NewWeatherUseCase(newMemoryRepo(), &fakeFetcher{err: tt.err}, logger)

			uc.HandleCommand(context.Background(), weatherCmd("wind", "Atlantis"))

			var warnings []map[string]any
			for _, rec := range logRecords(t, &buf) {
				if rec["level"] == "WARN" {
					warnings = append(warnings, rec)
				}
			}
			require.Len(t, warnings, 1)
			rec := warnings[0]
			assert.Equal(t, "weather request failed", rec["msg"])
			assert.Equal(t, tt.kind, rec["kind"])
			assert.Equal(t, "wind", rec["command"])
			assert.Equal(t, "Atlantis", rec["city"])
			assert.Equal(t, tt.err.Error(), rec["error"])
		})
	}
}

func TestUsageAndCatchAllLogNoWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	uc := NewWeatherUseCase(newMemoryRepo(), &fakeFetcher{}, logger)

	assert.Equal(t, UsageHint("weather"), uc.HandleCommand(context.Background(), weatherCmd("weather")))
	assert.Equal(t, MsgUnknownCommand, uc.HandleCommand(context.Background(), weatherCmd("weathr", "Berlin")))

	for _, rec := range logRecords(t, &buf) {
		assert.NotEqual(t, "WARN", rec["level"], rec)
		assert.NotEqual(t, "ERROR", rec["level"], rec)
	}
}
