package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/cjeanneret/GoSnap/internal/debug"
)

// SyntheticDevice renders a test pattern for every shot. It is used for
// development on machines without camera hardware, the same way the mock
// GPIO driver stands in for a Raspberry Pi.
type SyntheticDevice struct {
	id      string
	facing  Facing
	width   int
	height  int
	quality int
}

// NewSyntheticDevice creates a synthetic device producing width x height JPEG frames.
func NewSyntheticDevice(id string, facing Facing, width, height, quality int) *SyntheticDevice {
	if quality <= 0 {
		quality = 90
	}
	return &SyntheticDevice{id: id, facing: facing, width: width, height: height, quality: quality}
}

// SyntheticDiscoverer exposes one front and one back synthetic device.
func SyntheticDiscoverer(width, height, quality int) Discoverer {
	devices := []Device{
		NewSyntheticDevice("synthetic-back", Back, width, height, quality),
		NewSyntheticDevice("synthetic-front", Front, width, height, quality),
	}
	return DiscovererFunc(func() []Device { return devices })
}

func (d *SyntheticDevice) ID() string     { return d.id }
func (d *SyntheticDevice) Facing() Facing { return d.facing }

func (d *SyntheticDevice) Open() (Input, error) {
	if d.width <= 0 || d.height <= 0 {
		return nil, fmt.Errorf("invalid synthetic frame size %dx%d", d.width, d.height)
	}
	return &syntheticInput{dev: d}, nil
}

type syntheticInput struct {
	mu    sync.Mutex
	dev   *SyntheticDevice
	shots int
}

func (in *syntheticInput) CapturePhoto(ctx context.Context, settings PhotoSettings) (*CapturedPhoto, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.mu.Lock()
	in.shots++
	n := in.shots
	in.mu.Unlock()

	w, h := in.dev.width, in.dev.height
	if !settings.HighResolution {
		w, h = max(w/2, 1), max(h/2, 1)
	}
	quality := in.dev.quality
	if settings.Quality > 0 {
		quality = settings.Quality
	}

	// Background hue shifts with every shot so consecutive frames differ.
	bg := color.NRGBA{R: uint8(40 * n), G: uint8(90 + 15*n), B: 160, A: 255}
	frame := imaging.New(w, h, bg)
	marker := imaging.New(w/4+1, h/4+1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	frame = imaging.Overlay(frame, marker, image.Pt((n*w/8)%(w-w/4), h/2-h/8), 0.8)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode synthetic frame: %w", err)
	}
	debug.Trace("Camera: synthetic shot #%d from %s (%d bytes)", n, in.dev.id, buf.Len())
	return &CapturedPhoto{Data: buf.Bytes(), TakenAt: time.Now(), DeviceID: in.dev.id}, nil
}

func (in *syntheticInput) Close() error { return nil }
