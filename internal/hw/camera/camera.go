package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Facing is the side of the host a camera device points to.
type Facing string

const (
	Front Facing = "front"
	Back  Facing = "back"
)

// ParseFacing converts a config value into a Facing.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case Front, Back:
		return Facing(s), nil
	default:
		return "", fmt.Errorf("unknown camera facing %q", s)
	}
}

var (
	// ErrNoDevice is returned when no device matches the requested facing.
	ErrNoDevice = errors.New("camera: no matching capture device")
	// ErrSessionStopped is returned by CapturePhoto when the session is not running.
	ErrSessionStopped = errors.New("camera: session not running")
)

// PhotoSettings controls how a single shot is encoded.
type PhotoSettings struct {
	Format         string // only "jpeg" is supported
	HighResolution bool
	Quality        int // JPEG quality 1-100, 0 = device default
}

// DefaultPhotoSettings are the settings used for every capture:
// high resolution JPEG.
func DefaultPhotoSettings() PhotoSettings {
	return PhotoSettings{Format: "jpeg", HighResolution: true}
}

// CapturedPhoto is the encoded output of one shot.
// Data may be empty when the device produced no image.
type CapturedPhoto struct {
	Data     []byte
	TakenAt  time.Time
	DeviceID string
}

// Device is the high-level description of a camera, regardless of how
// it is driven (synthetic frames, replayed files, real hardware...).
type Device interface {
	ID() string
	Facing() Facing
	// Open returns a device input ready to produce photos.
	Open() (Input, error)
}

// Input is an opened device wired into a session.
type Input interface {
	// CapturePhoto triggers a single shot and returns its encoded bytes.
	CapturePhoto(ctx context.Context, settings PhotoSettings) (*CapturedPhoto, error)
	Close() error
}

// Discoverer enumerates the capture devices available in the environment.
// An empty list means the environment has no camera hardware.
type Discoverer interface {
	Devices() []Device
}

// DiscovererFunc adapts a function to the Discoverer interface.
type DiscovererFunc func() []Device

func (f DiscovererFunc) Devices() []Device { return f() }

// NoHardware is a Discoverer for environments without any camera.
var NoHardware Discoverer = DiscovererFunc(func() []Device { return nil })

// Find returns the device matching the requested facing.
// When several devices match, the last one listed wins.
func Find(d Discoverer, facing Facing) (Device, error) {
	var found Device
	for _, dev := range d.Devices() {
		if dev.Facing() == facing {
			found = dev
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w (facing=%s)", ErrNoDevice, facing)
	}
	return found, nil
}
