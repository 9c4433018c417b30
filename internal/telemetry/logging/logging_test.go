package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"icmpmon/internal/telemetry/tracing"
)

func TestCorrelatedLoggerAddsTraceSpan(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: false}))
	log := New(base)

	tr, shutdown := tracing.New("test", true)
	defer func() { _ = shutdown(context.Background()) }()
	ctx, span := tr.StartSpan(context.Background(), "op")
	defer span.End()

	log.InfoCtx(ctx, "hello", "k", "v")
	out := buf.String()
	require.Contains(t, out, "trace_id=")
	require.Contains(t, out, "span_id=")
}

func TestCorrelatedLoggerNoSpan(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.New(slog.NewTextHandler(&buf, nil)))
	log.InfoCtx(context.Background(), "plain")
	require.False(t, strings.Contains(buf.String(), "trace_id="))
}

func TestWithAddsPersistentAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.New(slog.NewTextHandler(&buf, nil))).With("target_id", int64(7))
	log.InfoCtx(context.Background(), "probe")
	require.Contains(t, buf.String(), "target_id=7")
}
