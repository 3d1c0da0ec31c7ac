// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package commons provides the cross-cutting facilities (structured logging)
// shared by every package in this repository.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logging contract used throughout the repository.
// Every component takes a Logger rather than calling fmt.Println/log.Printf
// directly, so it can be swapped for a test double or a vendor-specific
// sink without touching call sites. The startup steps that run before a
// Logger exists (config loading, and the logger's construction in
// cmd/rialto-server) use the standard log package instead.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	DPanic(args ...interface{})
	DPanicf(template string, args ...interface{})
	Panic(args ...interface{})
	Panicf(template string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})

	// Benchmark logs, at info level, how long a named operation took.
	Benchmark(functionName string, duration time.Duration)

	Level() zapcore.Level
}

type zapLogger struct {
	*zap.SugaredLogger
}

func (l *zapLogger) Benchmark(functionName string, duration time.Duration) {
	l.SugaredLogger.Infow("benchmark", "function", functionName, "durationMs", duration.Milliseconds())
}

func (l *zapLogger) Level() zapcore.Level {
	return l.SugaredLogger.Level()
}

// Option configures NewApplicationLogger.
type Option func(*options)

type options struct {
	level      zapcore.Level
	logFile    string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

func defaultOptions() options {
	return options{
		level:      zapcore.InfoLevel,
		maxSizeMB:  100,
		maxBackups: 5,
		maxAgeDays: 28,
	}
}

// WithLevel overrides the minimum log level (default: info).
func WithLevel(level zapcore.Level) Option {
	return func(o *options) { o.level = level }
}

// WithLogFile enables lumberjack-rotated file output in addition to stderr.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// NewApplicationLogger builds the zap-backed Logger used across every
// session, task and RPC handler in this repository. With no options it logs
// JSON to stderr at info level; WithLogFile adds a rotating file sink.
func NewApplicationLogger(opts ...Option) (Logger, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), o.level),
	}
	if o.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			MaxAge:     o.maxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), o.level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return &zapLogger{SugaredLogger: base.Sugar()}, nil
}

// NewNoopLogger returns a Logger that discards everything, for tests that
// don't care about log output but need a non-nil Logger.
func NewNoopLogger() Logger {
	return &zapLogger{SugaredLogger: zap.NewNop().Sugar()}
}
