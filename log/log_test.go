package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	l.Info("hello", zap.String("k", "v"))
	require.NoError(t, l.Sync())
	require.NotNil(t, l.With(zap.String("a", "b")))
}

func TestNewBuildsAWorkingLogger(t *testing.T) {
	l, err := New(zapcore.InfoLevel)
	require.NoError(t, err)
	require.NotNil(t, l)

	child := l.With(zap.String("component", "test"))
	child.Info("started")
	child.Warn("slow", zap.Int("ms", 10))
}
