package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/buildrun"
	"voxelbuild.ai/internal/persistence/library"
	"voxelbuild.ai/internal/sim/site"
)

// app ties one running site to its files and the snapshot library.
type app struct {
	run      *buildrun.Run
	worldDir string
	lib      *library.Library
	log      zerolog.Logger

	saveMu sync.Mutex
}

func (a *app) site() *site.Site { return a.run.Site }

func (a *app) saveWorld(cp site.Checkpoint) (string, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	path, err := a.run.SaveWorld(a.worldDir, cp)
	if err != nil {
		return "", err
	}
	a.log.Info().Uint64("tick", cp.Tick).Str("path", path).Msg("world saved")
	return path, nil
}

// writeCheckpoints saves every checkpoint the site offers until ctx ends.
func (a *app) writeCheckpoints(ctx context.Context, ch <-chan site.Checkpoint) {
	for {
		select {
		case <-ctx.Done():
			return
		case cp := <-ch:
			if _, err := a.saveWorld(cp); err != nil {
				a.log.Error().Err(err).Uint64("tick", cp.Tick).Msg("world write")
			}
		}
	}
}

// finish saves the final world and records finished or cancelled builds.
// The site must have exited.
func (a *app) finish(ctx context.Context) {
	s := a.site()
	cp, err := s.Checkpoint()
	if err != nil {
		a.log.Error().Err(err).Msg("final checkpoint")
	} else if _, err := a.saveWorld(cp); err != nil {
		a.log.Error().Err(err).Msg("final world write")
	}
	if a.lib == nil || !(s.Done() || s.Cancelled()) {
		return
	}
	id, err := a.lib.RecordBuild(ctx, library.Build{
		SnapshotID: a.run.Snapshot.Meta().Header.ID,
		Ticks:      s.Tick(),
		Placed:     s.Placed(),
		Cleared:    s.Cleared(),
		Cancelled:  s.Cancelled(),
		RecordedAt: time.Now(),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("record build")
		return
	}
	a.log.Info().Int64("build", id).Bool("cancelled", s.Cancelled()).Uint64("ticks", s.Tick()).Msg("build recorded")
}

func (a *app) metricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s := a.site()
		name := a.run.Snapshot.Meta().Header.Name

		fmt.Fprintf(rw, "# HELP voxelbuild_site_tick Current site tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelbuild_site_tick gauge\n")
		fmt.Fprintf(rw, "voxelbuild_site_tick{snapshot=%q} %d\n", name, s.Tick())

		fmt.Fprintf(rw, "# HELP voxelbuild_site_cells Cells committed by the builder.\n")
		fmt.Fprintf(rw, "# TYPE voxelbuild_site_cells counter\n")
		fmt.Fprintf(rw, "voxelbuild_site_cells{snapshot=%q,action=%q} %d\n", name, "placed", s.Placed())
		fmt.Fprintf(rw, "voxelbuild_site_cells{snapshot=%q,action=%q} %d\n", name, "cleared", s.Cleared())

		fmt.Fprintf(rw, "# HELP voxelbuild_site_state Build state flags.\n")
		fmt.Fprintf(rw, "# TYPE voxelbuild_site_state gauge\n")
		fmt.Fprintf(rw, "voxelbuild_site_state{snapshot=%q,state=%q} %d\n", name, "done", boolGauge(s.Done()))
		fmt.Fprintf(rw, "voxelbuild_site_state{snapshot=%q,state=%q} %d\n", name, "cancelled", boolGauge(s.Cancelled()))

		fmt.Fprintf(rw, "# HELP voxelbuild_site_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE voxelbuild_site_observers gauge\n")
		fmt.Fprintf(rw, "voxelbuild_site_observers{snapshot=%q} %d\n", name, s.Subscribers())
	}
}

func (a *app) checkpointHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		rw.Header().Set("Content-Type", "application/json")
		cp, err := a.site().RequestCheckpoint(ctx)
		var path string
		if err == nil {
			path, err = a.saveWorld(cp)
		}
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": cp.Tick, "path": path})
	}
}

func (a *app) cancelHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		a.site().Cancel()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": a.site().Tick()})
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
