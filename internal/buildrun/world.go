package buildrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/site"
)

// WorldPath names the world file for tick under dir.
func WorldPath(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", tick, snapfile.WorldExt))
}

// SaveWorld writes cp under dir and returns the file path.
func (r *Run) SaveWorld(dir string, cp site.Checkpoint) (string, error) {
	path := WorldPath(dir, cp.Tick)
	if err := snapfile.WriteWorld(path, r.World(cp, time.Now())); err != nil {
		return "", err
	}
	return path, nil
}

// LatestWorld returns the highest-tick world file in dir, or "".
func LatestWorld(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, snapfile.WorldExt) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, snapfile.WorldExt), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// SiteName derives a directory name from a build target path.
func SiteName(target string) string {
	base := filepath.Base(target)
	for _, ext := range []string{snapfile.SnapshotExt, snapfile.WorldExt, filepath.Ext(base)} {
		if ext != "" && strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if base == "" || base == "." {
		return "site"
	}
	return base
}
