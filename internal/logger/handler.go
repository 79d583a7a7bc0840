// Copyright 2025 The pagecache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"io"
	"log/slog"
)

const (
	timestampSecondsKey = "timestamp.seconds"
	timestampNanosKey   = "timestamp.nanos"
	severityKey         = "severity"
	messageKey          = "message"

	textTimeFormat = "2006/01/02 15:04:05.000000"
)

// severityName maps slog levels to the severity strings written to the
// log, including the custom TRACE level.
func severityName(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func replaceAttr(prefix string, textTime bool) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			t := a.Value.Time()
			if textTime {
				return slog.String(slog.TimeKey, t.Format(textTimeFormat))
			}
			return slog.Group("timestamp",
				slog.Int64("seconds", t.Unix()),
				slog.Int64("nanos", int64(t.Nanosecond())))
		case slog.LevelKey:
			return slog.String(severityKey, severityName(a.Value.Any().(slog.Level)))
		case slog.MessageKey:
			return slog.String(messageKey, prefix+a.Value.String())
		}
		return a
	}
}

func defaultTextHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	return slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceAttr(prefix, true),
	})
}

func defaultJSONHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceAttr(prefix, false),
	})
}
