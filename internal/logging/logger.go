package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger: human-readable console output plus,
// when path is non-empty, JSON lines into a size-rotated file. maxSizeMB
// and maxBackups set the rotation policy. The returned closer is nil when
// no file sink is configured.
func NewLogger(path string, maxSizeMB, maxBackups int) (zerolog.Logger, io.Closer, error) {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	if path == "" {
		return zerolog.New(console).With().Timestamp().Logger(), nil, nil
	}

	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	file, err := NewRotatingFileWriter(path, int64(maxSizeMB)<<20, maxBackups)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	sink := zerolog.MultiLevelWriter(console, file)
	return zerolog.New(sink).With().Timestamp().Logger(), file, nil
}
