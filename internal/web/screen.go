package web

import (
	"context"
	"sync"

	"github.com/cjeanneret/GoSnap/internal/hw/camera"
	"github.com/cjeanneret/GoSnap/internal/logic/capture"
)

// NewControllerFunc builds a fresh capture controller for a camera screen.
// preview receives the live preview of the configured device.
type NewControllerFunc func(preview capture.PreviewSink) *capture.Controller

// Screen hosts at most one camera controller at a time, the way a
// camera screen owns its controller between appear and close.
type Screen struct {
	newController NewControllerFunc
	broadcaster   *StatusBroadcaster

	mu   sync.Mutex
	ctrl *capture.Controller
}

// NewScreen creates a screen that builds controllers with newController.
func NewScreen(newController NewControllerFunc, broadcaster *StatusBroadcaster) *Screen {
	return &Screen{newController: newController, broadcaster: broadcaster}
}

// Open shows the camera screen: it activates a new controller unless one
// is already open, and returns it with the channel reporting its settled state.
func (s *Screen) Open(ctx context.Context) (*capture.Controller, <-chan capture.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.live(); c != nil {
		return c, c.Activate(ctx)
	}

	ctrl := s.newController(&previewPublisher{b: s.broadcaster})
	s.ctrl = ctrl
	go s.watch(ctrl)

	settled := make(chan capture.State, 1)
	go func() {
		defer close(settled)
		st := <-ctrl.Activate(ctx)
		s.broadcaster.Publish(StatusEvent{Kind: "state", Msg: st.String()})
		settled <- st
	}()
	return ctrl, settled
}

// watch forwards alerts and forgets the controller once it closes.
func (s *Screen) watch(ctrl *capture.Controller) {
	for {
		select {
		case a := <-ctrl.Alerts():
			s.broadcaster.Publish(StatusEvent{Kind: "alert", Level: "warning", Msg: a.Message, Data: a})
		case <-ctrl.Done():
			s.mu.Lock()
			if s.ctrl == ctrl {
				s.ctrl = nil
			}
			s.mu.Unlock()
			s.broadcaster.Publish(StatusEvent{Kind: "state", Msg: capture.Closed.String()})
			return
		}
	}
}

// live returns the hosted controller unless it has already closed.
// Callers hold s.mu.
func (s *Screen) live() *capture.Controller {
	if s.ctrl == nil {
		return nil
	}
	select {
	case <-s.ctrl.Done():
		s.ctrl = nil
	default:
	}
	return s.ctrl
}

// Current returns the open controller, or nil.
func (s *Screen) Current() *capture.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live()
}

// Close closes the open controller, if any.
func (s *Screen) Close() {
	s.mu.Lock()
	c := s.ctrl
	s.ctrl = nil
	s.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// previewPublisher announces preview attach/detach to subscribers.
type previewPublisher struct {
	b *StatusBroadcaster
}

func (p *previewPublisher) AttachPreview(dev camera.Device) {
	p.b.Publish(StatusEvent{Kind: "preview", Msg: "attached", Data: map[string]string{
		"device": dev.ID(),
		"facing": string(dev.Facing()),
	}})
}

func (p *previewPublisher) DetachPreview() {
	p.b.Publish(StatusEvent{Kind: "preview", Msg: "detached"})
}
