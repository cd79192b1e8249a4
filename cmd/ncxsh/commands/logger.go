// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package commands

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	ncx "github.com/netascode/go-ncx"
)

// zeroLogger adapts a zerolog logger to ncx.Logger; key/value pairs
// become event fields
type zeroLogger struct {
	log zerolog.Logger
}

func (l zeroLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l zeroLogger) Info(msg string, keysAndValues ...any) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l zeroLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (l zeroLogger) Error(msg string, keysAndValues ...any) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

// zerologLevel maps a session log level name onto zerolog
func zerologLevel(level string) (zerolog.Level, error) {
	lvl, err := ncx.ParseLogLevel(level)
	if err != nil {
		return zerolog.Disabled, err
	}
	switch lvl {
	case ncx.LogLevelDebug:
		return zerolog.DebugLevel, nil
	case ncx.LogLevelInfo:
		return zerolog.InfoLevel, nil
	case ncx.LogLevelWarn:
		return zerolog.WarnLevel, nil
	case ncx.LogLevelError:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.Disabled, nil
	}
}

// newLogger creates a console logger writing to w
func newLogger(w io.Writer, level string) (ncx.Logger, error) {
	lvl, err := zerologLevel(level)
	if err != nil {
		return nil, err
	}
	writer := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}
	return zeroLogger{log: zerolog.New(writer).Level(lvl).With().Timestamp().Logger()}, nil
}
