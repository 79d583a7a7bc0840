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

// Package logger provides the leveled logging used across the module,
// built on log/slog with an extra TRACE level below DEBUG.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kernmem/pagecache/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below slog.LevelDebug; slog has no trace level of
// its own.
const LevelTrace = slog.Level(-8)

// LevelOff sits above every level that is ever logged.
const LevelOff = slog.Level(12)

const (
	textFormat = "text"
	jsonFormat = "json"
)

var (
	defaultLoggerFactory *loggerFactory
	defaultLogger        *slog.Logger
)

func init() {
	defaultLoggerFactory = &loggerFactory{
		file:   nil,
		level:  "INFO",
		format: textFormat,
	}
	defaultLogger = defaultLoggerFactory.newLogger("INFO")
}

// InitLogFile initializes the logger factory from the supplied logging
// configuration. When a file path is set, output goes to that file with
// rotation; otherwise it goes to stderr.
func InitLogFile(logConfig cfg.LoggingConfig) error {
	var f *lumberjack.Logger
	if logConfig.FilePath != "" {
		f = &lumberjack.Logger{
			Filename:   logConfig.FilePath,
			MaxSize:    logConfig.LogRotate.MaxFileSizeMb,
			MaxBackups: logConfig.LogRotate.BackupFileCount,
			Compress:   logConfig.LogRotate.Compress,
		}
	}

	defaultLoggerFactory = &loggerFactory{
		file:   f,
		level:  logConfig.Severity,
		format: logConfig.Format,
	}
	defaultLogger = defaultLoggerFactory.newLogger(logConfig.Severity)

	return nil
}

// Tracef prints the message with TRACE severity in the specified
// format.
func Tracef(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

// Debugf prints the message with DEBUG severity in the specified
// format.
func Debugf(format string, v ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, v...))
}

// Infof prints the message with INFO severity in the specified format.
func Infof(format string, v ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, v...))
}

// Warnf prints the message with WARNING severity in the specified
// format.
func Warnf(format string, v ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, v...))
}

// Errorf prints the message with ERROR severity in the specified
// format.
func Errorf(format string, v ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, v...))
}

////////////////////////////////////////////////////////////////////////
// Factory
////////////////////////////////////////////////////////////////////////

type loggerFactory struct {
	// If nil, log to stderr.
	file   *lumberjack.Logger
	level  string
	format string
}

func (f *loggerFactory) newLogger(level string) *slog.Logger {
	// Create a new level variable to configure the log level; it applies
	// to all the loggers created using this variable.
	var programLevel = new(slog.LevelVar)
	logger := slog.New(f.handler(programLevel, ""))
	slog.SetDefault(logger)
	setLoggingLevel(level, programLevel)
	return logger
}

func (f *loggerFactory) createJsonOrTextHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	if f.format == jsonFormat {
		return defaultJSONHandler(writer, levelVar, prefix)
	}
	return defaultTextHandler(writer, levelVar, prefix)
}

func (f *loggerFactory) handler(levelVar *slog.LevelVar, prefix string) slog.Handler {
	if f.file != nil {
		return f.createJsonOrTextHandler(f.file, levelVar, prefix)
	}
	return f.createJsonOrTextHandler(os.Stderr, levelVar, prefix)
}

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case "TRACE":
		programLevel.Set(LevelTrace)
	case "DEBUG":
		programLevel.Set(slog.LevelDebug)
	case "INFO":
		programLevel.Set(slog.LevelInfo)
	case "WARNING":
		programLevel.Set(slog.LevelWarn)
	case "ERROR":
		programLevel.Set(slog.LevelError)
	case "OFF":
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(slog.LevelInfo)
	}
}
