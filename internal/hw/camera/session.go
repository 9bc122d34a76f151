package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/GoSnap/internal/debug"
)

// Session is the live pipeline connecting one device input to the
// photo output. It is started once configured and stopped on close.
type Session struct {
	mu        sync.Mutex
	device    Device
	input     Input
	running   bool
	onRunning func(bool)
}

// NewSession creates an empty session. onRunning, if non-nil, is called
// every time the session starts or stops (privacy indicator).
func NewSession(onRunning func(bool)) *Session {
	return &Session{onRunning: onRunning}
}

// AddInput opens the device and wires it into the session.
func (s *Session) AddInput(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != nil {
		return fmt.Errorf("camera: session already has an input (%s)", s.device.ID())
	}
	in, err := d.Open()
	if err != nil {
		return fmt.Errorf("open device %s: %w", d.ID(), err)
	}
	debug.Verbose("Camera: input %s (%s) added to session", d.ID(), d.Facing())
	s.device = d
	s.input = in
	return nil
}

// StartRunning starts the session. It requires an input.
func (s *Session) StartRunning() error {
	s.mu.Lock()
	if s.input == nil {
		s.mu.Unlock()
		return errors.New("camera: session has no input")
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	hook := s.onRunning
	s.mu.Unlock()

	debug.Live("Camera: session running")
	if hook != nil {
		hook(true)
	}
	return nil
}

// Running reports whether the session is started.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StopRunning stops the session and closes the device input.
// Safe to call more than once.
func (s *Session) StopRunning() error {
	s.mu.Lock()
	wasRunning := s.running
	in := s.input
	s.running = false
	s.input = nil
	s.device = nil
	hook := s.onRunning
	s.mu.Unlock()

	if wasRunning {
		debug.Live("Camera: session stopped")
		if hook != nil {
			hook(false)
		}
	}
	if in != nil {
		return in.Close()
	}
	return nil
}

// CapturePhoto triggers a single shot on the running session.
func (s *Session) CapturePhoto(ctx context.Context, settings PhotoSettings) (*CapturedPhoto, error) {
	s.mu.Lock()
	in := s.input
	running := s.running
	s.mu.Unlock()
	if !running || in == nil {
		return nil, ErrSessionStopped
	}
	if settings.Format != "" && settings.Format != "jpeg" {
		return nil, fmt.Errorf("camera: unsupported photo format %q", settings.Format)
	}
	return in.CapturePhoto(ctx, settings)
}
