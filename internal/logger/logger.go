package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"tracker/internal/domain/errors"

	"github.com/rs/zerolog"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

func init() {
	zerolog.TimestampFieldName = "timestamp"
}

// New builds the application logger for env writing to w (os.Stdout when nil).
func New(env string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	level := zerolog.InfoLevel
	switch env {
	case EnvLocal:
		level = zerolog.TraceLevel
		cw := zerolog.NewConsoleWriter()
		cw.TimeFormat = time.DateTime
		cw.Out = w
		w = cw
	case EnvDev:
		level = zerolog.DebugLevel
	case EnvProd:
	default:
		return zerolog.Nop(), fmt.Errorf("%w: %q", errors.ErrUnknownEnv, env)
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("env", env).
		Int("pid", os.Getpid()).
		Logger(), nil
}
