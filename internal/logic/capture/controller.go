package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/GoSnap/internal/debug"
	"github.com/cjeanneret/GoSnap/internal/hw/camera"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
)

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Configuring
	Ready
	Blocked
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configuring:
		return "configuring"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotReady is returned by Capture outside the Ready state.
	ErrNotReady = errors.New("capture: controller not ready")
	// ErrNoPhotoData is returned when the camera produced no image bytes.
	ErrNoPhotoData = errors.New("capture: camera returned no photo data")
)

// Saver persists encoded photo bytes.
type Saver interface {
	Set(data []byte) (photostore.PhotoFile, error)
}

// PreviewSink receives the live preview of the configured device.
type PreviewSink interface {
	AttachPreview(dev camera.Device)
	DetachPreview()
}

// Result is a completed capture.
type Result struct {
	File     photostore.PhotoFile
	DeviceID string
	TakenAt  time.Time
	Data     []byte
}

// Options tune a Controller.
type Options struct {
	Facing    camera.Facing        // device preference, Front by default
	Settings  camera.PhotoSettings // zero value selects camera.DefaultPhotoSettings
	Preview   PreviewSink          // optional
	OnRunning func(bool)           // optional session start/stop hook (indicator LED)
	// OnSaved is called after every successful capture, before the
	// pending capture resolves.
	OnSaved func(ctx context.Context, r *Result)
}

// Controller mediates between the camera hardware and the screen that
// shows it: permission check, session configuration, single captures and
// teardown.
type Controller struct {
	discoverer camera.Discoverer
	auth       camera.Authorizer
	store      Saver
	opts       Options
	session    *camera.Session

	mu        sync.Mutex
	state     State
	last      *Result
	activated bool

	captureMu sync.Mutex // one capture at a time

	alerts    chan Alert
	done      chan struct{}
	closeOnce sync.Once
}

// NewController creates a controller in the Uninitialized state.
func NewController(d camera.Discoverer, auth camera.Authorizer, store Saver, opts Options) *Controller {
	if opts.Facing == "" {
		opts.Facing = camera.Front
	}
	if opts.Settings.Format == "" {
		opts.Settings = camera.DefaultPhotoSettings()
	}
	return &Controller{
		discoverer: d,
		auth:       auth,
		store:      store,
		opts:       opts,
		session:    camera.NewSession(opts.OnRunning),
		alerts:     make(chan Alert, 4),
		done:       make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Alerts delivers user-facing alerts. Acknowledge them with AckAlert.
func (c *Controller) Alerts() <-chan Alert {
	return c.alerts
}

// Done is closed once the controller asks its screen to tear down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// LastCaptured returns the most recent successful capture, or nil.
func (c *Controller) LastCaptured() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// transition moves from one of the allowed states to next. It reports
// false when the current state is not in from (e.g. closed meanwhile).
func (c *Controller) transition(next State, from ...State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range from {
		if c.state == f {
			debug.State(c.state.String(), next.String())
			c.state = next
			return true
		}
	}
	return false
}

// Activate is called when the screen appears. Authorization and session
// configuration run on their own goroutine; the returned channel receives
// the settled state (Ready, Blocked or Closed) and is then closed.
// Calling Activate again only reports the current state.
func (c *Controller) Activate(ctx context.Context) <-chan State {
	out := make(chan State, 1)

	c.mu.Lock()
	if c.activated || c.state != Uninitialized {
		out <- c.state
		close(out)
		c.mu.Unlock()
		return out
	}
	c.activated = true
	c.mu.Unlock()

	go func() {
		defer close(out)
		c.activate(ctx)
		out <- c.State()
	}()
	return out
}

func (c *Controller) activate(ctx context.Context) {
	debug.Section("Camera activation")

	if len(c.discoverer.Devices()) == 0 {
		c.block(AlertUnsupportedEnvironment)
		return
	}

	status := c.auth.Status()
	debug.Value("Camera authorization", status)
	switch status {
	case camera.Authorized:
		c.configure()

	case camera.Denied, camera.Restricted:
		c.block(AlertPermissionDenied)

	case camera.NotDetermined:
		debug.Live("Requesting camera access")
		granted, err := c.auth.RequestAccess(ctx)
		if err != nil {
			debug.Errorf("camera access request: %v", err)
			c.block(AlertPermissionDenied)
			return
		}
		if !granted {
			c.block(AlertPermissionDenied)
			return
		}
		c.configure()

	default:
		c.block(AlertUnknownAuthStatus)
	}
}

// configure selects the device, wires the session and starts it.
func (c *Controller) configure() {
	if !c.transition(Configuring, Uninitialized) {
		return
	}
	debug.Step(1, "Selecting capture device")
	dev, err := camera.Find(c.discoverer, c.opts.Facing)
	if err != nil {
		debug.Error(err)
		c.block(AlertConfigurationFailed)
		return
	}
	debug.Value("Device", dev.ID())

	debug.Step(2, "Wiring device input and photo output")
	if err := c.session.AddInput(dev); err != nil {
		debug.Error(err)
		c.block(AlertConfigurationFailed)
		return
	}

	debug.Step(3, "Attaching preview")
	if c.opts.Preview != nil {
		c.opts.Preview.AttachPreview(dev)
	}

	debug.Step(4, "Starting session")
	if err := c.session.StartRunning(); err != nil {
		debug.Error(err)
		c.teardown()
		c.block(AlertConfigurationFailed)
		return
	}

	if !c.transition(Ready, Configuring) {
		// Closed while configuring.
		c.teardown()
	}
}

// block moves to Blocked and raises an alert. Acknowledging the alert closes the controller.
func (c *Controller) block(kind AlertKind) {
	if !c.transition(Blocked, Uninitialized, Configuring) {
		return
	}
	alert := Alert{Kind: kind, Title: "Warning", Message: kind.Message()}
	debug.Info("Alert: %s", alert.Message)
	select {
	case c.alerts <- alert:
	default:
		debug.Verbose("Alert dropped (no listener): %s", alert.Message)
	}
}

// AckAlert acknowledges the pending alert ("Ok"), which closes the controller.
func (c *Controller) AckAlert() {
	c.Close()
}

// Close stops the session and signals the screen to tear down. It is
// safe to call more than once and from any state.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		debug.State(c.state.String(), Closed.String())
		c.state = Closed
		c.mu.Unlock()

		c.teardown()
		close(c.done)
	})
}

func (c *Controller) teardown() {
	if err := c.session.StopRunning(); err != nil {
		debug.Errorf("stopping session: %v", err)
	}
	if c.opts.Preview != nil {
		c.opts.Preview.DetachPreview()
	}
}

// Capture triggers a single shot. It returns immediately with a pending
// capture that resolves once the photo is encoded and persisted.
// Capture fails with ErrNotReady outside the Ready state.
func (c *Controller) Capture(ctx context.Context) (*Pending, error) {
	if st := c.State(); st != Ready {
		return nil, fmt.Errorf("%w (state=%s)", ErrNotReady, st)
	}
	p := newPending()
	go func() {
		res, err := c.capture(ctx)
		p.resolve(res, err)
	}()
	return p, nil
}

func (c *Controller) capture(ctx context.Context) (*Result, error) {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	if st := c.State(); st != Ready {
		return nil, fmt.Errorf("%w (state=%s)", ErrNotReady, st)
	}

	shot, err := c.session.CapturePhoto(ctx, c.opts.Settings)
	if err != nil {
		return nil, fmt.Errorf("capture photo: %w", err)
	}
	if shot == nil || len(shot.Data) == 0 {
		debug.Live("Capture produced no data, nothing saved")
		return nil, ErrNoPhotoData
	}

	file, err := c.store.Set(shot.Data)
	if err != nil {
		return nil, err
	}

	res := &Result{File: file, DeviceID: shot.DeviceID, TakenAt: shot.TakenAt, Data: shot.Data}
	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	if c.opts.OnSaved != nil {
		c.opts.OnSaved(ctx, res)
	}
	return res, nil
}
