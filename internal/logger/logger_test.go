package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		l, err := New(in)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(want), "level %q", in)
		if want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(want-1), "level %q", in)
		}
	}
}

func TestPrintfAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewPrintfAdapter(zap.New(core)).Printf("slow query %dms", 250)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slow query 250ms", logs.All()[0].Message)

	assert.NotPanics(t, func() { NewPrintfAdapter(nil).Printf("x") })
}
