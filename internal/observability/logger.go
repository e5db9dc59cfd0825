package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	logs "github.com/danmuck/wxdash/internal/logging"
)

// InitLogger derives the structured HTTP logger from the process logger so
// both honour the same level and output settings.
func InitLogger(app string) zerolog.Logger {
	logger := logs.Logger().With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
