package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew_ParsesLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"WARNING": zapcore.WarnLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew_CreatesLogger(t *testing.T) {
	log, err := New(&Config{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Debug("probe")
}

func TestContext_RoundTrip(t *testing.T) {
	log, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx, enriched := WithRequestID(context.Background(), log, "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Same(t, enriched, FromContext(ctx))
}

func TestFromContext_MissingLoggerIsNoop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
