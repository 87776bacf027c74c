package logger

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/linemk/sim-exchange/internal/lib/logger/handlers/slogpretty"
)

// switching logger
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const appName = "sim-exchange"

// SetupLogger инициализирует логгер в зависимости от переданного окружения:
// local – цветной вывод с уровнем debug, dev – JSON с debug, prod – JSON с info.
// Неизвестное окружение ведёт себя как prod и пишет об этом предупреждение.
func SetupLogger(env string) *slog.Logger {
	switch env {
	case EnvLocal:
		return setupPrettySlog()
	case EnvDev:
		return newJSONLogger(slog.LevelDebug).With(slog.String("env", env))
	case EnvProd:
		return newJSONLogger(slog.LevelInfo).With(slog.String("env", env))
	}

	log := newJSONLogger(slog.LevelInfo).With(slog.String("env", env))
	log.Warn("unknown environment, using prod logging settings")
	return log
}

func newJSONLogger(level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	).With(slog.String("app", appName))
}

func setupPrettySlog() *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
