package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/site"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestAuditLoggerStampsTick(t *testing.T) {
	dir := t.TempDir()
	tick := uint64(0)
	l := NewAuditLogger(dir, func() uint64 { return tick })
	l.w.WithClock(func() time.Time { return time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC) })

	tick = 4
	require.NoError(t, l.WriteAudit(builder.AuditEntry{Seq: 1, Action: builder.AuditDestroy, Pos: [3]int{1, 2, 3}, Target: 32}))
	tick = 9
	require.NoError(t, l.WriteAudit(builder.AuditEntry{
		Seq: 2, Action: builder.AuditPlace, Pos: [3]int{0, 1, 0},
		Items: []inventory.ItemStack{{Item: "BRICK", Count: 1}},
	}))
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, "audit", "audit-2024-03-01-10.jsonl.zst"))
	require.Len(t, lines, 2)
	require.EqualValues(t, 4, lines[0]["tick"])
	require.Equal(t, "DESTROY", lines[0]["action"])
	require.EqualValues(t, 32, lines[0]["target"])
	require.EqualValues(t, 9, lines[1]["tick"])
	require.Equal(t, "PLACE", lines[1]["action"])
	items := lines[1]["items"].([]any)
	require.Equal(t, "BRICK", items[0].(map[string]any)["item"])
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(dir, "x").WithClock(func() time.Time { return now })
	require.NoError(t, w.Write(map[string]int{"n": 1}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Write(map[string]int{"n": 2}))
	require.NoError(t, w.Write(map[string]int{"n": 3}))
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "x-*.jsonl.zst"))
	require.NoError(t, err)
	sort.Strings(files)
	require.Equal(t, []string{
		filepath.Join(dir, "x-2024-03-01-10.jsonl.zst"),
		filepath.Join(dir, "x-2024-03-01-11.jsonl.zst"),
	}, files)
	require.Len(t, readLines(t, files[0]), 1)
	require.Len(t, readLines(t, files[1]), 2)
}

func TestTickLoggerWritesSummaries(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	l.w.WithClock(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	require.NoError(t, l.WriteTick(site.TickSummary{Tick: 1, Stored: 5, LeftToPlace: 3}))
	require.NoError(t, l.WriteTick(site.TickSummary{Tick: 2, Done: true}))
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, "ticks", "ticks-2024-03-01-00.jsonl.zst"))
	require.Len(t, lines, 2)
	require.EqualValues(t, 3, lines[0]["left_to_place"])
	require.Equal(t, true, lines[1]["done"])
}
