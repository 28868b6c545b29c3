package repository

import (
	"fmt"
	"log/slog"

	"github.com/abelzeko/weather-bot/internal/config"
)

// Open returns the UserRepository selected by driver
func Open(driver, path string, logger *slog.Logger) (UserRepository, error) {
	switch driver {
	case config.DriverSQLite, "":
		return NewSQLiteUserRepository(path, logger)
	case config.DriverBolt:
		return NewBoltUserRepository(path, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
