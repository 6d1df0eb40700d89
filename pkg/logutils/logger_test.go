package logutils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "console")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "console")
	require.Error(t, err)

	_, err = New("info", "xml")
	require.Error(t, err)
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	l := zap.NewExample()
	SetLogger(l)
	require.Same(t, l, ZapLogger())

	SetLogger(nil)
	require.NotNil(t, ZapLogger())
}
