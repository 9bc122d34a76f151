package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/GoSnap/internal/debug"
)

// DirectoryDevice replays JPEG files from a directory, one per shot, in
// name order and wrapping around. Useful with cameras that drop frames
// into a folder (tethered shooting, webcam snapshot daemons).
type DirectoryDevice struct {
	id     string
	facing Facing
	dir    string
}

// NewDirectoryDevice creates a device replaying frames from dir.
func NewDirectoryDevice(dir string, facing Facing) *DirectoryDevice {
	return &DirectoryDevice{id: "dir:" + filepath.Base(dir), facing: facing, dir: dir}
}

// DirectoryDiscoverer reports the device only while dir exists.
func DirectoryDiscoverer(dir string, facing Facing) Discoverer {
	dev := NewDirectoryDevice(dir, facing)
	return DiscovererFunc(func() []Device {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return nil
		}
		return []Device{dev}
	})
}

func (d *DirectoryDevice) ID() string     { return d.id }
func (d *DirectoryDevice) Facing() Facing { return d.facing }

func (d *DirectoryDevice) Open() (Input, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			frames = append(frames, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no JPEG frames in %s", d.dir)
	}
	sort.Strings(frames)
	debug.Verbose("Camera: %d frames available in %s", len(frames), d.dir)
	return &directoryInput{id: d.id, frames: frames}, nil
}

type directoryInput struct {
	mu     sync.Mutex
	id     string
	frames []string
	next   int
}

// CapturePhoto returns the next frame. An unreadable frame yields a
// CapturedPhoto without data rather than an error.
func (in *directoryInput) CapturePhoto(ctx context.Context, _ PhotoSettings) (*CapturedPhoto, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.mu.Lock()
	path := in.frames[in.next%len(in.frames)]
	in.next++
	in.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		debug.Errorf("Camera: reading frame %s: %v", path, err)
		data = nil
	}
	return &CapturedPhoto{Data: data, TakenAt: time.Now(), DeviceID: in.id}, nil
}

func (in *directoryInput) Close() error { return nil }
