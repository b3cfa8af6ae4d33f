// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import "go.uber.org/zap"

// noLog is a Logger that discards everything, for tests and for components
// that were not handed a real logger.
type noLog struct{}

// NewNoOpLogger returns a logger that discards everything written to it.
func NewNoOpLogger() Logger {
	return noLog{}
}

func (noLog) With(fields ...zap.Field) Logger      { return noLog{} }
func (noLog) Debug(msg string, fields ...zap.Field) {}
func (noLog) Info(msg string, fields ...zap.Field)  {}
func (noLog) Warn(msg string, fields ...zap.Field)  {}
func (noLog) Error(msg string, fields ...zap.Field) {}
func (noLog) Fatal(msg string, fields ...zap.Field) {}
func (noLog) Sync() error                           { return nil }
