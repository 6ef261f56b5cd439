package snapfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/schematic"
	"voxelbuild.ai/internal/sim/site"
	"voxelbuild.ai/internal/sim/snapshot"
	"voxelbuild.ai/internal/sim/tuning"
)

func hut(t *testing.T) snapshot.Snapshot {
	t.Helper()
	d := &snapshot.Definition{
		Name:   "shed",
		Type:   snapshot.TypeBlueprint,
		Owner:  uuid.NewString(),
		Legend: map[string]string{"P": "PLANK", "G": "GLASS"},
		Layers: [][]string{{"PP", "PP"}, {"PG", "P."}},
	}
	s, err := d.Build(catalogs.Builtin(), time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := hut(t)
	h := s.Meta().Header
	path := SnapshotPath(dir, h)

	digest, err := WriteSnapshot(path, s)
	require.NoError(t, err)
	require.Len(t, digest, 16)

	info, err := ReadInfo(path)
	require.NoError(t, err)
	require.Equal(t, KindSnapshot, info.Kind)
	require.Equal(t, digest, info.Digest)
	require.NotNil(t, info.Snapshot)
	require.Equal(t, h.ID, info.Snapshot.ID)
	require.Equal(t, "shed", info.Snapshot.Name)

	got, _, err := ReadSnapshot(path, schematic.Builtins())
	require.NoError(t, err)
	bp, ok := got.(*snapshot.Blueprint)
	require.True(t, ok, "got %T", got)
	want := s.(*snapshot.Blueprint)
	require.Equal(t, want.Size, bp.Size)
	require.Equal(t, want.Indices, bp.Indices)
	require.Len(t, bp.Palette, len(want.Palette))
	for i := range want.Palette {
		require.Equal(t, schematic.Key(want.Palette[i]), schematic.Key(bp.Palette[i]))
	}
	require.True(t, h.Created.Equal(bp.Header.Created))
	require.Equal(t, h.Owner, bp.Header.Owner)
}

func TestTemplateRoundTrip(t *testing.T) {
	tpl := snapshot.NewTemplate(snapshot.NewHeader(uuid.New(), "post", snapshot.TypeTemplate, time.Now()), geom.C(1, 4, 1))
	tpl.Set(geom.C(0, 0, 0), true)
	tpl.Set(geom.C(0, 3, 0), true)
	path := filepath.Join(t.TempDir(), "post"+SnapshotExt)
	_, err := WriteSnapshot(path, tpl)
	require.NoError(t, err)

	got, info, err := ReadSnapshot(path, schematic.Builtins())
	require.NoError(t, err)
	require.Equal(t, snapshot.TypeTemplate, info.Snapshot.Type)
	require.Equal(t, 2, got.(*snapshot.Template).Filled())
}

func TestReadSnapshotDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	s := hut(t)
	path := SnapshotPath(dir, s.Meta().Header)
	_, err := WriteSnapshot(path, s)
	require.NoError(t, err)

	// Rewrite the body with one byte flipped, keeping the header.
	info, body, err := readFile(path, KindSnapshot)
	require.NoError(t, err)
	body[len(body)-1] ^= 0xff
	require.NoError(t, writeFile(path, info, body))

	_, _, err = ReadSnapshot(path, schematic.Builtins())
	require.ErrorIs(t, err, ErrDigest)
}

func TestReadRejectsWrongKindAndVersion(t *testing.T) {
	dir := t.TempDir()
	wpath := filepath.Join(dir, "site"+WorldExt)
	require.NoError(t, WriteWorld(wpath, World{Tuning: tuning.Defaults()}))
	_, _, err := ReadSnapshot(wpath, schematic.Builtins())
	require.ErrorIs(t, err, ErrKind)

	vpath := filepath.Join(dir, "future"+SnapshotExt)
	f, err := os.Create(vpath)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"version":99,"kind":"snapshot"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	_, err = ReadInfo(vpath)
	require.ErrorIs(t, err, ErrVersion)
}

func TestWorldRoundTrip(t *testing.T) {
	cat := catalogs.Builtin()
	g := grid.New(cat, grid.DefaultGen(cat, 7, 0, 0))
	require.NoError(t, g.Set(geom.C(2, 1, 2), "BRICK"))

	tun := tuning.Defaults()
	w := World{
		Header: WorldHeader{SnapshotID: uuid.New(), Tick: 42, Saved: time.Now().UTC()},
		Tuning: tun,
		Origin: [3]int{1, 2, 3},
		Facing: 1,
		Checkpoint: site.Checkpoint{
			Tick:      42,
			Chunks:    g.ExportChunks(),
			Stored:    123,
			Inventory: map[string]int{"PLANK": 5},
			Builder:   []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			Placed:    7,
		},
	}
	path := filepath.Join(t.TempDir(), "site"+WorldExt)
	require.NoError(t, WriteWorld(path, w))

	info, err := ReadInfo(path)
	require.NoError(t, err)
	require.Equal(t, KindWorld, info.Kind)
	require.Equal(t, uint64(42), info.World.Tick)

	got, err := ReadWorld(path)
	require.NoError(t, err)
	require.Equal(t, w.Header.SnapshotID, got.Header.SnapshotID)
	require.Equal(t, w.Origin, got.Origin)
	require.Equal(t, w.Facing, got.Facing)
	require.Equal(t, tun.TickRateHz, got.Tuning.TickRateHz)
	require.Equal(t, tun.Excavate(), got.Tuning.Excavate())
	require.Equal(t, w.Checkpoint.Inventory, got.Checkpoint.Inventory)
	require.Equal(t, w.Checkpoint.Builder, got.Checkpoint.Builder)
	require.Equal(t, int64(7), got.Checkpoint.Placed)

	back, err := grid.ImportChunks(cat, grid.DefaultGen(cat, 7, 0, 0), got.Checkpoint.Chunks)
	require.NoError(t, err)
	require.Equal(t, "BRICK", back.BlockName(geom.C(2, 1, 2)))
	require.Equal(t, g.Digest(), back.Digest())
}
