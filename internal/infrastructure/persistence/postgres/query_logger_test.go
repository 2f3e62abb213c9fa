package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"openspec-api/pkg/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { logger.SetDefault(nil) })
	return &buf
}

func TestQueryLoggerSkipsRecordNotFound(t *testing.T) {
	buf := captureLogs(t)
	l := newQueryLogger(time.Second)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT broken", 0 }, assert.AnError)
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "SELECT broken")
}

func TestQueryLoggerReportsSlowQueries(t *testing.T) {
	buf := captureLogs(t)
	l := newQueryLogger(10 * time.Millisecond)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT fast", 1 }, nil)
	assert.NotContains(t, buf.String(), "SELECT fast")

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT slow", 1 }, nil)
	assert.Contains(t, buf.String(), "slow query")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	buf := captureLogs(t)
	l := newQueryLogger(time.Millisecond).LogMode(gormlogger.Silent)

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 0 }, assert.AnError)
	l.Warn(context.Background(), "ignored %d", 1)
	assert.Empty(t, buf.String())
}
