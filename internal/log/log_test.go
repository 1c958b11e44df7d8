package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/log"

	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.NewWriter(&buf, false)

	ctx := log.ContextAttrs(t.Context(), slog.String("run_id", "20240101_1200_deadbeef"))
	ctx = log.ContextAttrs(ctx, slog.String("cmd", "run"))
	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "20240101_1200_deadbeef", rec["run_id"])
	require.Equal(t, "run", rec["cmd"])
}

func TestVerboseLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	log.NewWriter(&buf, false).Debug("hidden")
	require.Empty(t, buf.Bytes())

	log.NewWriter(&buf, true).Debug("visible")
	require.Contains(t, buf.String(), "visible")
}
