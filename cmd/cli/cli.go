// Command cli runs a single bot command from the terminal and prints the reply.
//
//	cli weather Нижний Новгород
//	cli -user 42 -name anna start
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/abelzeko/weather-bot/internal/config"
	"github.com/abelzeko/weather-bot/internal/entities"
	"github.com/abelzeko/weather-bot/internal/integration/openweather"
	"github.com/abelzeko/weather-bot/internal/logging"
	"github.com/abelzeko/weather-bot/internal/repository"
	"github.com/abelzeko/weather-bot/internal/usecases"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "path to an optional .env file")
	userID := fs.Int64("user", 0, "user id used by /start")
	name := fs.String("name", "cli", "display name used by /start")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: cli [flags] <command> [arguments...]")
		fs.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err == nil {
		err = cfg.Validate(false)
	}
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	logger := logging.New(stderr, cfg, "weather-cli")

	repo, err := repository.Open(cfg.StorageDriver, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		return 1
	}
	defer repo.Close()

	useCase := usecases.NewWeatherUseCase(repo, openweather.NewClient(cfg, logger), logger)

	reply := useCase.HandleCommand(context.Background(), entities.Command{
		Name:        fs.Arg(0),
		Args:        fs.Args()[1:],
		UserID:      *userID,
		DisplayName: *name,
	})
	fmt.Fprintln(stdout, reply)
	return 0
}
