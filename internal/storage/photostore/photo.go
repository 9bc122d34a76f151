package photostore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
)

// Photo is a persisted photo loaded into memory.
type Photo struct {
	Name    string    `json:"name"`
	Data    []byte    `json:"-"`
	Format  string    `json:"format"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	TakenAt time.Time `json:"taken_at,omitempty"` // from EXIF, zero when absent
	ModTime time.Time `json:"mod_time"`
}

// load reads and decodes the file at path.
func load(path string) (*Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("read photo %s: %w", filepath.Base(path), err)
	}
	p, err := decode(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		p.ModTime = info.ModTime()
	}
	return p, nil
}

// decode validates that data is an image and extracts its dimensions and
// EXIF capture time.
func decode(name string, data []byte) (*Photo, error) {
	var (
		cfg    image.Config
		format string
		err    error
	)
	if isHEIC(name) {
		cfg, err = goheif.DecodeConfig(bytes.NewReader(data))
		format = "heic"
	} else {
		cfg, format, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	return &Photo{
		Name:    name,
		Data:    data,
		Format:  format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		TakenAt: exifTime(name, data),
	}, nil
}

// exifTime returns the EXIF DateTime of the photo, or the zero time.
func exifTime(name string, data []byte) time.Time {
	raw := data
	if isHEIC(name) {
		b, err := goheif.ExtractExif(bytes.NewReader(data))
		if err != nil {
			return time.Time{}
		}
		raw = b
	}
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return time.Time{}
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}
	}
	return t
}

// Thumbnail returns a JPEG thumbnail of the named photo that fits in
// maxDim x maxDim, honoring EXIF orientation.
func (s *Store) Thumbnail(name string, maxDim int) ([]byte, error) {
	p, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	var img image.Image
	if isHEIC(name) {
		img, err = goheif.Decode(bytes.NewReader(p.Data))
	} else {
		img, err = imaging.Decode(bytes.NewReader(p.Data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	if maxDim > 0 {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func isHEIC(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".heic" || ext == ".heif"
}
