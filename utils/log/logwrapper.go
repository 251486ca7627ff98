/*
 * Copyright 2019 The GameSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log is a thin wrapper around logrus that keeps the engine's
// logging surface in one place.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Fields is an alias of logrus.Fields.
type Fields = logrus.Fields

// Entry is an alias of logrus.Entry.
type Entry = logrus.Entry

// Level is an alias of logrus.Level.
type Level = logrus.Level

// Levels re-exported from logrus.
const (
	PanicLevel = logrus.PanicLevel
	FatalLevel = logrus.FatalLevel
	ErrorLevel = logrus.ErrorLevel
	WarnLevel  = logrus.WarnLevel
	InfoLevel  = logrus.InfoLevel
	DebugLevel = logrus.DebugLevel
)

var logger = logrus.New()

// StandardLogger returns the shared logger instance.
func StandardLogger() *logrus.Logger {
	return logger
}

// SetOutput sets the logger output.
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

// SetLevel sets the logger level.
func SetLevel(level Level) {
	logger.SetLevel(level)
}

// GetLevel returns the logger level.
func GetLevel() Level {
	return logger.Level
}

// SetStringLevel sets the logger level from a string, falling back to
// defaultLevel on an unknown value.
func SetStringLevel(level string, defaultLevel Level) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = defaultLevel
	}
	logger.SetLevel(lvl)
}

// WithField creates an entry with a single field.
func WithField(key string, value interface{}) *Entry {
	return logger.WithField(key, value)
}

// WithFields creates an entry with a map of fields.
func WithFields(fields Fields) *Entry {
	return logger.WithFields(fields)
}

// WithError creates an entry with the error as a single field.
func WithError(err error) *Entry {
	return logger.WithError(err)
}

// Debug logs at level Debug.
func Debug(args ...interface{}) {
	logger.Debug(args...)
}

// Info logs at level Info.
func Info(args ...interface{}) {
	logger.Info(args...)
}

// Warning logs at level Warn.
func Warning(args ...interface{}) {
	logger.Warning(args...)
}

// Error logs at level Error.
func Error(args ...interface{}) {
	logger.Error(args...)
}

// Panic logs at level Panic, then panics.
func Panic(args ...interface{}) {
	logger.Panic(args...)
}

// Fatal logs at level Fatal, then calls os.Exit(1).
func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

// Debugf logs a formatted message at level Debug.
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof logs a formatted message at level Info.
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warningf logs a formatted message at level Warn.
func Warningf(format string, args ...interface{}) {
	logger.Warningf(format, args...)
}

// Errorf logs a formatted message at level Error.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Panicf logs a formatted message at level Panic, then panics.
func Panicf(format string, args ...interface{}) {
	logger.Panicf(format, args...)
}

// Fatalf logs a formatted message at level Fatal, then calls os.Exit(1).
func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}
