package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	config "github.com/thirdweb-dev/txconflict/configs"
)

func InitLogger() {
	// overrides zerolog global logger
	log.Logger = NewLogger("txconflict")
}

func NewLogger(name string) zerolog.Logger {
	return newLogger(name, os.Stderr)
}

func newLogger(name string, out io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := zerolog.WarnLevel
	if lvl, err := zerolog.ParseLevel(config.Cfg.Log.Level); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	if config.Cfg.Log.Prettify {
		out = zerolog.ConsoleWriter{Out: out, PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			"chain",
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}, FieldsExclude: []string{"chain"}}
	}
	return zerolog.New(out).With().Timestamp().Str("component", name).Caller().Logger()
}

// ForChain derives a logger from the global one that tags every event with the chain being analyzed.
func ForChain(chain string) zerolog.Logger {
	return log.Logger.With().Str("chain", chain).Logger()
}
