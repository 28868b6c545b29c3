package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/abelzeko/weather-bot/internal/api"
	"github.com/abelzeko/weather-bot/internal/config"
	"github.com/abelzeko/weather-bot/internal/integration/openweather"
	"github.com/abelzeko/weather-bot/internal/logging"
	"github.com/abelzeko/weather-bot/internal/repository"
	"github.com/abelzeko/weather-bot/internal/usecases"
)

func main() {
	os.Exit(run("", os.Stdout, os.Stderr))
}

// run returns the exit code so that deferred cleanup always happens before exit
func run(envFile string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(envFile)
	if err == nil {
		err = cfg.Validate(true)
	}
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	logger := logging.New(stdout, cfg, "weather-bot")
	logger.Info("starting weather bot", "storage", cfg.StorageDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(cfg.StorageDriver, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		return 1
	}
	defer repo.Close()

	client := openweather.NewClient(cfg, logger)
	useCase := usecases.NewWeatherUseCase(repo, client, logger)

	// Registry stats are only logged, so a bad schedule is not fatal
	c := cron.New()
	if _, err := c.AddFunc(cfg.StatsSchedule, func() {
		if err := useCase.ReportRegistryStats(); err != nil {
			logger.Error("scheduled registry stats failed", "error", err)
		}
	}); err != nil {
		logger.Warn("failed to schedule registry stats", "schedule", cfg.StatsSchedule, "error", err)
	} else {
		c.Start()
		defer c.Stop()
	}

	telegramBot, err := api.NewTelegramBot(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, useCase, logger)
	if err != nil {
		logger.Error("failed to initialize telegram bot", "error", err)
		return 1
	}

	var menu []api.MenuCommand
	for _, cmd := range usecases.Commands() {
		menu = append(menu, api.MenuCommand{Name: cmd.Name, Description: cmd.Description})
	}
	if err := telegramBot.SetCommands(menu); err != nil {
		logger.Warn("failed to publish command menu", "error", err)
	}

	telegramBot.Start(ctx)
	return 0
}
