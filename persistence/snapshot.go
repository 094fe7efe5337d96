package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"burrow/server/models"
)

const SnapshotVersion = 1

// SnapshotHeader is written as the first line of the decompressed stream so
// tooling can identify a snapshot without decoding the body.
type SnapshotHeader struct {
	Version   int       `json:"version"`
	World     string    `json:"world"`
	Tick      uint64    `json:"tick"`
	Walkers   int       `json:"walkers"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a point-in-time copy of a world: its map and every walker with
// its remaining route.
type Snapshot struct {
	Header  SnapshotHeader   `json:"header"`
	Map     *models.GameMap  `json:"map"`
	Walkers []*models.Walker `json:"walkers"`
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteSnapshot stores snap zstd-compressed at path and returns the number of
// bytes written to disk.
func WriteSnapshot(path string, snap Snapshot) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: f}

	if err := encodeSnapshot(cw, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return cw.n, os.Rename(tmp, path)
}

func encodeSnapshot(w io.Writer, snap Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read snapshot header: %w", err)
	}
	var header SnapshotHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return snap, fmt.Errorf("decode snapshot header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return snap, fmt.Errorf("snapshot %s: unsupported version %d", path, header.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Snapshotter names snapshot files per world and tick inside one directory.
type Snapshotter struct {
	dir    string
	logger *log.Logger
}

func NewSnapshotter(dir string, logger *log.Logger) *Snapshotter {
	if logger == nil {
		logger = log.Default()
	}
	return &Snapshotter{dir: dir, logger: logger}
}

func (s *Snapshotter) path(world string, tick uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%012d.snap.zst", world, tick))
}

// Save writes snap and returns its path.
func (s *Snapshotter) Save(snap Snapshot) (string, error) {
	snap.Header.Version = SnapshotVersion
	snap.Header.Walkers = len(snap.Walkers)
	if snap.Header.CreatedAt.IsZero() {
		snap.Header.CreatedAt = time.Now().UTC()
	}
	path := s.path(snap.Header.World, snap.Header.Tick)
	n, err := WriteSnapshot(path, snap)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Printf("snapshot tick=%d walkers=%d size=%s path=%s",
		snap.Header.Tick, snap.Header.Walkers, humanize.Bytes(uint64(n)), path)
	return path, nil
}

// Latest returns the path of the newest snapshot for world, or "" if none exist.
func (s *Snapshotter) Latest(world string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, world+"-*.snap.zst"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
