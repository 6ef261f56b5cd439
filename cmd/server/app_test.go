package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/buildrun"
	"voxelbuild.ai/internal/persistence/library"
	"voxelbuild.ai/internal/persistence/snapfile"
)

func findRepoRootForServerTests(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	root := findRepoRootForServerTests(t)
	cfg := t.TempDir()
	for _, name := range []string{"blocks.json", "items.json"} {
		raw, err := os.ReadFile(filepath.Join(root, "configs", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(cfg, name), raw, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	tune := "tick_rate_hz: 1000\nbattery:\n  input_mj_per_tick: 100\nworld:\n  ground_y: 0\n  sprinkle_permille: 0\n"
	if err := os.WriteFile(filepath.Join(cfg, "tuning.yaml"), []byte(tune), 0o644); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	run, err := buildrun.Prepare(buildrun.Options{
		ConfigDir: cfg,
		Target:    filepath.Join(root, "configs", "definitions", "pillar.json"),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return &app{run: run, worldDir: t.TempDir(), log: zerolog.Nop()}
}

func TestMetricsReportSiteCounters(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 3; i++ {
		a.site().Step()
	}
	rr := httptest.NewRecorder()
	a.metricsHandler()(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `voxelbuild_site_tick{snapshot="Pillar"} 3`) {
		t.Fatalf("metrics missing tick:\n%s", body)
	}
	if !strings.Contains(string(body), `voxelbuild_site_state{snapshot="Pillar",state="cancelled"} 0`) {
		t.Fatalf("metrics missing state:\n%s", body)
	}
}

func TestCheckpointHandlerWritesWorld(t *testing.T) {
	a := newTestApp(t)
	a.site().Step()

	// An exited site answers checkpoint requests directly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = a.site().Run(ctx)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/checkpoint", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rr := httptest.NewRecorder()
	a.checkpointHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OK   bool   `json:"ok"`
		Tick uint64 `json:"tick"`
		Path string `json:"path"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Tick != 1 {
		t.Fatalf("resp %+v", resp)
	}
	w, err := snapfile.ReadWorld(resp.Path)
	if err != nil {
		t.Fatalf("read world: %v", err)
	}
	if w.Header.SnapshotID != a.run.Snapshot.Meta().Header.ID || w.Checkpoint.Tick != 1 {
		t.Fatalf("world header %+v", w.Header)
	}
}

func TestAdminRejectsRemoteAndGet(t *testing.T) {
	a := newTestApp(t)

	rr := httptest.NewRecorder()
	a.cancelHandler()(rr, httptest.NewRequest(http.MethodGet, "/admin/v1/cancel", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cancel", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	rr = httptest.NewRecorder()
	a.cancelHandler()(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote status %d", rr.Code)
	}
}

func TestFinishRecordsCancelledBuild(t *testing.T) {
	a := newTestApp(t)
	lib, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer lib.Close()
	a.lib = lib
	target := filepath.Join(findRepoRootForServerTests(t), "configs", "definitions", "pillar.json")
	if err := registerSnapshot(context.Background(), lib, a.run, target, t.TempDir()); err != nil {
		t.Fatalf("register: %v", err)
	}

	a.site().Step()
	a.site().Cancel()
	if err := a.site().Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	a.finish(context.Background())

	builds, err := lib.Builds(context.Background(), a.run.Snapshot.Meta().Header.ID)
	if err != nil {
		t.Fatalf("builds: %v", err)
	}
	if len(builds) != 1 || !builds[0].Cancelled || builds[0].Ticks != 1 {
		t.Fatalf("builds %+v", builds)
	}
	if buildrun.LatestWorld(a.worldDir) == "" {
		t.Fatalf("final world not written")
	}
}
