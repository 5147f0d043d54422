package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
)

func TestDecodeRecords(t *testing.T) {
	recs, err := decodeRecords(strings.NewReader(`[
		{"id": 1, "code": "A", "price": 9.5, "big": 12345678901234, "note": null},
		{"id": 2, "active": true}
	]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, int64(1), recs[0]["id"])
	assert.Equal(t, "A", recs[0]["code"])
	assert.Equal(t, 9.5, recs[0]["price"])
	assert.Equal(t, int64(12345678901234), recs[0]["big"])
	assert.Nil(t, recs[0]["note"])
	assert.Equal(t, true, recs[1]["active"])
}

func TestDecodeRecords_Invalid(t *testing.T) {
	for _, in := range []string{`{"id": 1}`, `[{"id": 1}`, `not json`} {
		_, err := decodeRecords(strings.NewReader(in))
		assert.True(t, errs.IsInvalidInput(err), in)
	}
}

func TestWriteReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kept.json")
	require.NoError(t, writeRecords(path, []map[string]any{{"id": int64(3), "code": "C"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code": "C"`)

	recs, err := readRecords(path)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(3), "code": "C"}}, recs)

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMapRecords(t *testing.T) {
	orders := &model.Table{
		Name: "orders",
		Columns: []model.Column{
			{Name: "reference", Type: "VARCHAR(32)"},
			{Name: "amount", Type: "DECIMAL(10,2)"},
			{Name: "placed_at", Type: "DATETIME"},
		},
	}
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fields:
  - {source: OrderNo, column: reference, type: str, required: true}
  - {source: Amount, column: amount, type: decimal}
  - {source: PlacedAt, column: placed_at, type: datetime}
`), 0o600))

	recs, err := decodeRecords(strings.NewReader(`[{"OrderNo": "A-1", "Amount": "12.50", "PlacedAt": "2024-01-02 03:04:05"}]`))
	require.NoError(t, err)

	mapped, err := mapRecords(path, orders, recs, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{
		"reference": "A-1",
		"amount":    "12.5",
		"placed_at": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}}, mapped)

	unchanged, err := mapRecords("", orders, recs, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, recs, unchanged)

	_, err = mapRecords(path, &model.Table{Name: "other"}, recs, logger.Nop())
	assert.True(t, errs.IsConfiguration(err))
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"validate", "serve", "watch", "mcp", "filter", "reports"} {
		assert.True(t, names[want], want)
	}
}
