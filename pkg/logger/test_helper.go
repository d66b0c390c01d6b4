package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// NewTestLogger discards every event.
func NewTestLogger() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// NewBufferedTestLogger writes JSON events at debug level to w so tests can assert on fields.
func NewBufferedTestLogger(w io.Writer) Logger {
	return Logger{Logger: zerolog.New(w).Level(zerolog.DebugLevel)}
}
