// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package sampledlogger rate limits repetitive log messages. Each distinct
// message is written at most once per interval; suppressed repeats are
// counted and reported with the next write.
package sampledlogger

import (
	"sync"
	"time"

	"go.uber.org/sched/internal/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger with per-message rate limiting.
type Logger struct {
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	seen map[string]*entry
}

type entry struct {
	last       time.Time
	suppressed int
}

// New builds a Logger writing to logger at most once per interval per
// message.
func New(logger *zap.Logger, interval time.Duration, c clock.Clock) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = clock.NewReal()
	}
	return &Logger{
		logger:   logger,
		clock:    c,
		interval: interval,
		seen:     make(map[string]*entry),
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.log(zapcore.DebugLevel, msg, fields)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.log(zapcore.InfoLevel, msg, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.log(zapcore.WarnLevel, msg, fields)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.log(zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) log(level zapcore.Level, msg string, fields []zap.Field) {
	if !l.logger.Core().Enabled(level) {
		return
	}

	now := l.clock.Now()
	l.mu.Lock()
	e, ok := l.seen[msg]
	if !ok {
		e = &entry{}
		l.seen[msg] = e
	}
	if ok && now.Sub(e.last) < l.interval {
		e.suppressed++
		l.mu.Unlock()
		return
	}
	suppressed := e.suppressed
	e.last = now
	e.suppressed = 0
	l.mu.Unlock()

	if suppressed > 0 {
		fields = append(fields, zap.Int("suppressed", suppressed))
	}
	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}
