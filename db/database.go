package db

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens (or creates) the Coxswain database at the given path and
// runs migrations.
func InitDB(databasePath string) (*gorm.DB, error) {
	database, err := InitDatabase(DBConfig{
		Path:     databasePath,
		LogLevel: getGormLogLevel(),
	})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrateAll(database); err != nil {
		return nil, err
	}

	return database, nil
}

// getGormLogLevel maps the application log level to a GORM log level
func getGormLogLevel() logger.LogLevel {
	l := slog.Default()

	switch {
	case l.Enabled(context.TODO(), slog.LevelDebug):
		return logger.Info // show SQL queries only when debug logging is enabled
	case l.Enabled(context.TODO(), slog.LevelWarn):
		return logger.Warn
	case l.Enabled(context.TODO(), slog.LevelError):
		return logger.Error
	default:
		return logger.Silent
	}
}
