package observability

import (
	"os"
	"time"

	"github.com/danmuck/simctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the root console logger and installs it as the
// process default. Components receive child loggers explicitly; nothing
// below cmd/ reads the global.
func InitLogger(app string) zerolog.Logger {
	cfg := logging.Current()
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	ctx := zerolog.New(output).Level(cfg.Level).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}
