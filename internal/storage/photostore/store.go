// Package photostore persists captured photos under a fixed relative
// directory of a documents root, one timestamp-named file per shot.
package photostore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/GoSnap/internal/debug"
)

// TimestampLayout names photo files: year-month-day-hour-minute-second.millis.
const TimestampLayout = "2006-01-02-15-04-05.000"

// Defaults matching the on-disk layout <documents>/ImageViewer/takenPhotos/<timestamp>_taken.jpg.
const (
	DefaultRelativePath = "ImageViewer/takenPhotos"
	DefaultSuffix       = "_taken.jpg"
)

var (
	// ErrStoreUnavailable wraps failures to create or reach the photo directory.
	ErrStoreUnavailable = errors.New("photostore: storage directory unavailable")
	// ErrNotFound is returned when a photo does not exist.
	ErrNotFound = errors.New("photostore: photo not found")
	// ErrDecode is returned when a file exists but is not a readable image.
	ErrDecode = errors.New("photostore: cannot decode photo")
	// ErrInvalidName is returned for names containing path elements.
	ErrInvalidName = errors.New("photostore: invalid photo name")
)

// CollisionPolicy decides what Set does when the generated name already exists.
type CollisionPolicy int

const (
	// Suffix keeps the existing file and writes <stem>-1<ext>, <stem>-2<ext>, ...
	Suffix CollisionPolicy = iota
	// Overwrite replaces the existing file.
	Overwrite
)

// ParseCollisionPolicy converts a config value ("suffix" or "overwrite").
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch s {
	case "", "suffix":
		return Suffix, nil
	case "overwrite":
		return Overwrite, nil
	default:
		return Suffix, fmt.Errorf("unknown collision policy %q", s)
	}
}

// Options tune a Store. Zero values select the defaults.
type Options struct {
	RelativePath string
	Suffix       string
	Collision    CollisionPolicy
	Workers      int              // concurrent loads in GetAll
	Clock        func() time.Time // name source, time.Now by default
}

// PhotoFile describes a persisted photo.
type PhotoFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store owns the photo directory. It is safe for concurrent use.
type Store struct {
	dir  string
	opts Options
	mu   sync.Mutex // serializes name generation and writes
}

// New creates a store rooted at documentsDir. Nothing is touched on disk
// until Initialize.
func New(documentsDir string, opts Options) *Store {
	if opts.RelativePath == "" {
		opts.RelativePath = DefaultRelativePath
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		dir:  filepath.Join(documentsDir, filepath.FromSlash(opts.RelativePath)),
		opts: opts,
	}
}

// Dir returns the photo directory.
func (s *Store) Dir() string {
	return s.dir
}

// Initialize ensures the photo directory exists. Calling it again is a no-op.
// A failure is logged and returned; reads keep working on whatever exists.
func (s *Store) Initialize() error {
	if fi, err := os.Stat(s.dir); err == nil && fi.IsDir() {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		err = fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, s.dir, err)
		debug.Error(err)
		return err
	}
	debug.Verbose("Store: created %s", s.dir)
	return nil
}

// Set writes data under a name generated from the clock.
func (s *Store) Set(data []byte) (PhotoFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock()
	base := now.Format(TimestampLayout) + s.opts.Suffix

	f, name, err := s.create(base)
	if err != nil {
		err = fmt.Errorf("save photo %s: %w", base, err)
		debug.Error(err)
		return PhotoFile{}, err
	}

	path := filepath.Join(s.dir, name)
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		err = fmt.Errorf("save photo %s: %w", name, err)
		debug.Error(err)
		return PhotoFile{}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		err = fmt.Errorf("save photo %s: %w", name, err)
		debug.Error(err)
		return PhotoFile{}, err
	}

	debug.Shot(name, len(data))
	return PhotoFile{Name: name, Path: path, Size: int64(len(data)), ModTime: now}, nil
}

// create opens the destination file according to the collision policy.
func (s *Store) create(base string) (*os.File, string, error) {
	if s.opts.Collision == Overwrite {
		f, err := os.OpenFile(filepath.Join(s.dir, base), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return f, base, nil
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := base
	for counter := 1; counter <= 9999; counter++ {
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, counter, ext)
	}
	return nil, "", fmt.Errorf("too many photos named %s", base)
}

// List returns the persisted photo files sorted by name, without loading them.
func (s *Store) List() ([]PhotoFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrStoreUnavailable, s.dir, err)
	}
	files := make([]PhotoFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, PhotoFile{
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// GetAll loads every photo in the directory on a bounded worker pool.
// Files that cannot be read or decoded are left out. The result is sorted
// by name; an empty directory yields an empty slice.
func (s *Store) GetAll(ctx context.Context) ([]*Photo, error) {
	files, err := s.List()
	if err != nil {
		debug.Error(err)
		return nil, err
	}

	var (
		mu     sync.Mutex
		photos = make([]*Photo, 0, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := load(f.Path)
			if err != nil {
				debug.Trace("Store: skipping %s: %v", f.Name, err)
				return nil
			}
			mu.Lock()
			photos = append(photos, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(photos, func(i, j int) bool { return photos[i].Name < photos[j].Name })
	debug.Live("Store: loaded %d/%d photos", len(photos), len(files))
	return photos, nil
}

// Get loads a photo by file name.
func (s *Store) Get(name string) (*Photo, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return load(filepath.Join(s.dir, name))
}

// GetPath loads a photo from a path string: a bare name, a path inside
// the photo directory, or a file:// URL pointing into it.
func (s *Store) GetPath(pathString string) (*Photo, error) {
	path, err := s.resolve(pathString)
	if err != nil {
		return nil, err
	}
	return load(path)
}

// Delete removes a photo by file name.
func (s *Store) Delete(name string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete photo %s: %w", name, err)
	}
	debug.Live("Store: deleted %s", name)
	return nil
}

// resolve turns a path string into an absolute path inside the photo directory.
func (s *Store) resolve(pathString string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(pathString), "file://")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, filepath.FromSlash(p))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q is outside the photo directory", ErrInvalidName, pathString)
	}
	return abs, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
