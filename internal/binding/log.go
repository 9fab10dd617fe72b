package binding

import (
	"os"

	"github.com/rs/zerolog"
)

// zlog carries binding diagnostics. It writes info and above to stderr until
// SetLogger is called.
var zlog = zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Str("component", "binding").Logger()

// SetLogger installs a structured logger used by the binding layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "binding").Logger() }

// fail records a failure in metrics and the log and returns it.
func fail(e *Error) error {
	opFailures.WithLabelValues(e.Op, e.Kind.String()).Inc()
	zlog.Error().Str("op", e.Op).Str("kind", e.Kind.String()).Err(e).Msg("binding operation failed")
	return e
}
