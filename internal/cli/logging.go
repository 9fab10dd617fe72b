package cli

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"llamabind/internal/binding"
	"llamabind/internal/boundary"
	"llamabind/internal/httpapi"
)

// newLogger builds the process logger: a console writer on terminals, JSON
// lines otherwise.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	// the manager and HTTP handlers log from several goroutines
	w = zerolog.SyncWriter(w)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// installLogger hands l to every package that logs.
func installLogger(l zerolog.Logger) {
	binding.SetLogger(l)
	boundary.SetLogger(l)
	httpapi.SetLogger(l)
}
