package logging

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// New builds the root logger. Unknown levels fall back to info.
func New(level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "habitsync",
		Level:  lvl,
		Output: output,
	})
}

// Discard is used by tests and by commands that print their own output.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
