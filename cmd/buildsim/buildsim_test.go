package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/buildrun"
	"voxelbuild.ai/internal/persistence/snapfile"
)

func repoPath(t *testing.T, parts ...string) string {
	t.Helper()
	return filepath.Join(append([]string{"..", ".."}, parts...)...)
}

func flatConfigs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"blocks.json", "items.json"} {
		raw, err := os.ReadFile(repoPath(t, "configs", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	tune := "tick_rate_hz: 20\nbattery:\n  input_mj_per_tick: 100\nworld:\n  ground_y: 0\n  sprinkle_permille: 0\n"
	if err := os.WriteFile(filepath.Join(dir, "tuning.yaml"), []byte(tune), 0o644); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	return dir
}

func prepare(t *testing.T, target string) *buildrun.Run {
	t.Helper()
	run, err := buildrun.Prepare(buildrun.Options{ConfigDir: flatConfigs(t), Target: target, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return run
}

func TestSimulateBuildsHut(t *testing.T) {
	run := prepare(t, repoPath(t, "configs", "definitions", "hut.json"))
	res, err := simulate(run, 100000, 0)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !res.Done || res.Cancelled {
		t.Fatalf("result %+v", res)
	}
	// 43 solid cells; the doorway and interior are air.
	if res.Placed != 43 {
		t.Fatalf("placed %d", res.Placed)
	}
	if s := buildrun.FormatStock(res.Left); s != "" {
		t.Fatalf("leftover stock %s", s)
	}

	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()
	if !strings.Contains(out, "Stone hut") || !strings.Contains(out, "placed:    43") || !strings.Contains(out, "inventory: -") {
		t.Fatalf("summary:\n%s", out)
	}
}

func TestSimulateCancelReturnsStock(t *testing.T) {
	run := prepare(t, repoPath(t, "configs", "definitions", "pillar.json"))
	res, err := simulate(run, 100000, 2)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !res.Cancelled || res.Ticks != 2 {
		t.Fatalf("result %+v", res)
	}
	if got := res.Left["STONE"] + int(res.Placed); got != 10 {
		t.Fatalf("stone left %d + placed %d != 10", res.Left["STONE"], res.Placed)
	}
}

func TestSimulateGivesUp(t *testing.T) {
	run := prepare(t, repoPath(t, "configs", "definitions", "hut.json"))
	if _, err := simulate(run, 1, 0); err == nil {
		t.Fatalf("expected max-ticks error")
	}
}

func TestCompileThenInspect(t *testing.T) {
	out := t.TempDir()
	path, digest, err := compileDefinition(repoPath(t, "configs"), repoPath(t, "configs", "definitions", "pillar.json"), out)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasSuffix(path, snapfile.SnapshotExt) {
		t.Fatalf("path %s", path)
	}
	info, err := snapfile.ReadInfo(path)
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if info.Digest != digest || info.Snapshot == nil || info.Snapshot.Name != "Pillar" {
		t.Fatalf("info %+v", info)
	}

	var buf bytes.Buffer
	printInfo(&buf, path, info)
	if !strings.Contains(buf.String(), "type:     TEMPLATE") || !strings.Contains(buf.String(), digest) {
		t.Fatalf("inspect output:\n%s", buf.String())
	}
}
