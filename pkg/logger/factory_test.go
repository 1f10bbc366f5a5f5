package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

type ctxKey struct{}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output with static attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "billingd")),
		)
		log.Info("started")

		record := logLine(t, &buf)
		assert.Equal(t, "started", record["msg"])
		assert.Equal(t, "billingd", record["service"])
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("context value extraction", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", ctxKey{}),
		)

		ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
		log.InfoContext(ctx, "handled")

		record := logLine(t, &buf)
		assert.Equal(t, "req-42", record["request_id"])

		// Without the value in context the attribute is absent.
		buf.Reset()
		log.InfoContext(context.Background(), "handled")
		_, ok := logLine(t, &buf)["request_id"]
		assert.False(t, ok)
	})

	t.Run("environment presets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithEnvironment("production", "billingd"),
			logger.WithOutput(&buf),
		)
		log.Debug("dropped in production")
		assert.Zero(t, buf.Len())

		log.Info("visible")
		record := logLine(t, &buf)
		assert.Equal(t, "billingd", record["service"])
		assert.Equal(t, "production", record["env"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "error", logger.Error(errors.New("boom")).Key)
	assert.Equal(t, "event_id", logger.EventID("evt_1").Key)
	assert.Equal(t, "component", logger.Component("gateway").Key)
}
