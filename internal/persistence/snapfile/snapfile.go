// Package snapfile stores snapshots and site checkpoints on disk.
//
// Every file is a zstd stream holding one JSON header line followed by a
// msgpack body. The header carries a farm64 digest of the body so a file can
// be listed without decoding it and verified when it is.
package snapfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/shamaton/msgpack/v2"

	"voxelbuild.ai/internal/sim/schematic"
	"voxelbuild.ai/internal/sim/site"
	"voxelbuild.ai/internal/sim/snapshot"
	"voxelbuild.ai/internal/sim/tuning"
)

const (
	Version = 1

	KindSnapshot = "snapshot"
	KindWorld    = "world"

	SnapshotExt = ".snap.zst"
	WorldExt    = ".world.zst"
)

var (
	ErrDigest  = errors.New("snapfile: digest mismatch")
	ErrKind    = errors.New("snapfile: wrong file kind")
	ErrVersion = errors.New("snapfile: unsupported version")
)

type WorldHeader struct {
	SnapshotID uuid.UUID `json:"snapshot_id" msgpack:"snapshot_id"`
	Tick       uint64    `json:"tick" msgpack:"tick"`
	Saved      time.Time `json:"saved" msgpack:"saved"`
}

// Info is the header line of a file.
type Info struct {
	Version  int              `json:"version"`
	Kind     string           `json:"kind"`
	Digest   string           `json:"digest"`
	Snapshot *snapshot.Header `json:"snapshot,omitempty"`
	World    *WorldHeader     `json:"world,omitempty"`
}

type snapshotBody struct {
	Header snapshot.Header `msgpack:"header"`
	Record snapshot.Record `msgpack:"record"`
}

// World is a resumable site: the build it runs and its checkpoint.
type World struct {
	Header     WorldHeader     `msgpack:"header"`
	Tuning     tuning.Tuning   `msgpack:"tuning"`
	Origin     [3]int          `msgpack:"origin"`
	Facing     int             `msgpack:"facing"`
	Checkpoint site.Checkpoint `msgpack:"checkpoint"`
}

// SnapshotPath is where a snapshot with header h lives under dir.
func SnapshotPath(dir string, h snapshot.Header) string {
	return filepath.Join(dir, h.FileName()+SnapshotExt)
}

// Digest is the farm64 fingerprint of a msgpack body.
func Digest(body []byte) string {
	return fmt.Sprintf("%016x", farm.Hash64(body))
}

// WriteSnapshot stores s at path and returns the body digest.
func WriteSnapshot(path string, s snapshot.Snapshot) (string, error) {
	rec, err := snapshot.ToRecord(s)
	if err != nil {
		return "", err
	}
	h := s.Meta().Header
	body, err := msgpack.Marshal(snapshotBody{Header: h, Record: rec})
	if err != nil {
		return "", fmt.Errorf("msgpack encode: %w", err)
	}
	info := Info{Version: Version, Kind: KindSnapshot, Digest: Digest(body), Snapshot: &h}
	if err := writeFile(path, info, body); err != nil {
		return "", err
	}
	return info.Digest, nil
}

// ReadSnapshot loads and verifies a snapshot file. reg restores blueprint
// palettes.
func ReadSnapshot(path string, reg schematic.Registry) (snapshot.Snapshot, Info, error) {
	info, body, err := readFile(path, KindSnapshot)
	if err != nil {
		return nil, info, err
	}
	var sb snapshotBody
	if err := msgpack.Unmarshal(body, &sb); err != nil {
		return nil, info, fmt.Errorf("msgpack decode: %w", err)
	}
	if info.Snapshot != nil && info.Snapshot.ID != sb.Header.ID {
		return nil, info, fmt.Errorf("%s: header id %s, body id %s", path, info.Snapshot.ID, sb.Header.ID)
	}
	s, err := snapshot.FromRecord(sb.Header, sb.Record, reg)
	if err != nil {
		return nil, info, err
	}
	return s, info, nil
}

// WriteWorld stores a site checkpoint at path.
func WriteWorld(path string, w World) error {
	body, err := msgpack.Marshal(w)
	if err != nil {
		return fmt.Errorf("msgpack encode: %w", err)
	}
	h := w.Header
	return writeFile(path, Info{Version: Version, Kind: KindWorld, Digest: Digest(body), World: &h}, body)
}

func ReadWorld(path string) (World, error) {
	var w World
	_, body, err := readFile(path, KindWorld)
	if err != nil {
		return w, err
	}
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return w, fmt.Errorf("msgpack decode: %w", err)
	}
	return w, nil
}

// ReadInfo reads only the header line.
func ReadInfo(path string) (Info, error) {
	var info Info
	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return info, err
	}
	defer dec.Close()

	return readInfo(bufio.NewReader(dec))
}

func readInfo(br *bufio.Reader) (Info, error) {
	var info Info
	line, err := br.ReadBytes('\n')
	if err != nil {
		return info, fmt.Errorf("header line: %w", err)
	}
	if err := json.Unmarshal(line, &info); err != nil {
		return info, fmt.Errorf("header line: %w", err)
	}
	if info.Version != Version {
		return info, fmt.Errorf("%w: %d", ErrVersion, info.Version)
	}
	return info, nil
}

func writeFile(path string, info Info, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, err := json.Marshal(info)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(body); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func readFile(path, kind string) (Info, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Info{}, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	info, err := readInfo(br)
	if err != nil {
		return info, nil, err
	}
	if info.Kind != kind {
		return info, nil, fmt.Errorf("%w: %s is a %s file", ErrKind, path, info.Kind)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return info, nil, err
	}
	if got := Digest(body); got != info.Digest {
		return info, nil, fmt.Errorf("%w: %s has %s, header says %s", ErrDigest, path, got, info.Digest)
	}
	return info, body, nil
}
