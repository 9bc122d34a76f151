package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/GoSnap/internal/hw/camera"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
)

// ---------- fakes ----------

type recordingSaver struct {
	mu    sync.Mutex
	saved [][]byte
	err   error
}

func (s *recordingSaver) Set(data []byte) (photostore.PhotoFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return photostore.PhotoFile{}, s.err
	}
	s.saved = append(s.saved, data)
	return photostore.PhotoFile{Name: "photo.jpg", Size: int64(len(data))}, nil
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type recordingPreview struct {
	mu       sync.Mutex
	attached string
	detached int
}

func (p *recordingPreview) AttachPreview(dev camera.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = dev.ID()
}

func (p *recordingPreview) DetachPreview() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached++
}

// fixedAuthorizer reports a raw status and never changes it.
type fixedAuthorizer struct{ status camera.AuthorizationStatus }

func (a fixedAuthorizer) Status() camera.AuthorizationStatus { return a.status }
func (a fixedAuthorizer) RequestAccess(context.Context) (bool, error) {
	return false, errors.New("unexpected prompt")
}

// blockingAuthorizer never answers the prompt until ctx is done.
type blockingAuthorizer struct{}

func (blockingAuthorizer) Status() camera.AuthorizationStatus { return camera.NotDetermined }
func (blockingAuthorizer) RequestAccess(ctx context.Context) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

// gatedAuthorizer grants access once release is closed and counts prompts.
type gatedAuthorizer struct {
	mu      sync.Mutex
	prompts int
	release chan struct{}
}

func (a *gatedAuthorizer) Status() camera.AuthorizationStatus { return camera.NotDetermined }
func (a *gatedAuthorizer) RequestAccess(ctx context.Context) (bool, error) {
	a.mu.Lock()
	a.prompts++
	a.mu.Unlock()
	select {
	case <-a.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *gatedAuthorizer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompts
}

// emptyDevice produces shots without data.
type emptyDevice struct{}

func (emptyDevice) ID() string            { return "empty" }
func (emptyDevice) Facing() camera.Facing { return camera.Front }
func (emptyDevice) Open() (camera.Input, error) {
	return emptyInput{}, nil
}

type emptyInput struct{}

func (emptyInput) CapturePhoto(context.Context, camera.PhotoSettings) (*camera.CapturedPhoto, error) {
	return &camera.CapturedPhoto{DeviceID: "empty"}, nil
}
func (emptyInput) Close() error { return nil }

// ---------- helpers ----------

func syntheticOnly(facing camera.Facing) camera.Discoverer {
	dev := camera.NewSyntheticDevice("synthetic-"+string(facing), facing, 32, 24, 80)
	return camera.DiscovererFunc(func() []camera.Device { return []camera.Device{dev} })
}

func settle(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("activation did not settle")
		return Uninitialized
	}
}

func nextAlert(t *testing.T, c *Controller) Alert {
	t.Helper()
	select {
	case a := <-c.Alerts():
		return a
	case <-time.After(time.Second):
		t.Fatal("no alert raised")
		return Alert{}
	}
}

// ---------- permission paths ----------

func TestActivate_PermissionPaths(t *testing.T) {
	cases := []struct {
		name      string
		status    camera.AuthorizationStatus
		answer    bool
		wantState State
		wantAlert bool
	}{
		{"authorized", camera.Authorized, false, Ready, false},
		{"denied", camera.Denied, true, Blocked, true},
		{"restricted", camera.Restricted, true, Blocked, true},
		{"not_determined_then_granted", camera.NotDetermined, true, Ready, false},
		{"not_determined_then_denied", camera.NotDetermined, false, Blocked, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := camera.NewStaticAuthorizer(tc.status, tc.answer)
			c := NewController(syntheticOnly(camera.Front), auth, &recordingSaver{}, Options{})
			defer c.Close()

			assert.Equal(t, Uninitialized, c.State())
			got := settle(t, c.Activate(context.Background()))
			assert.Equal(t, tc.wantState, got)
			assert.Equal(t, tc.wantState, c.State())

			if tc.wantAlert {
				a := nextAlert(t, c)
				assert.Equal(t, AlertPermissionDenied, a.Kind)
				assert.Equal(t, "Permission of camera usage should be granted", a.Message)
			} else {
				assert.Len(t, c.Alerts(), 0)
			}
		})
	}
}

func TestActivate_NoHardware(t *testing.T) {
	c := NewController(camera.NoHardware, fixedAuthorizer{camera.Authorized}, &recordingSaver{}, Options{})

	assert.Equal(t, Blocked, settle(t, c.Activate(context.Background())))
	a := nextAlert(t, c)
	assert.Equal(t, AlertUnsupportedEnvironment, a.Kind)
	assert.Equal(t, "Warning", a.Title)

	c.AckAlert()
	select {
	case <-c.Done():
	default:
		t.Fatal("acknowledging the alert should signal close")
	}
	assert.Equal(t, Closed, c.State())
}

func TestActivate_UnknownStatus(t *testing.T) {
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.AuthorizationStatus(42)}, &recordingSaver{}, Options{})
	defer c.Close()

	assert.Equal(t, Blocked, settle(t, c.Activate(context.Background())))
	assert.Equal(t, AlertUnknownAuthStatus, nextAlert(t, c).Kind)
}

func TestActivate_NoDeviceForFacing(t *testing.T) {
	c := NewController(syntheticOnly(camera.Back), fixedAuthorizer{camera.Authorized}, &recordingSaver{}, Options{Facing: camera.Front})
	defer c.Close()

	assert.Equal(t, Blocked, settle(t, c.Activate(context.Background())))
	assert.Equal(t, AlertConfigurationFailed, nextAlert(t, c).Kind)
}

func TestActivate_PromptCancelled(t *testing.T) {
	c := NewController(syntheticOnly(camera.Front), blockingAuthorizer{}, &recordingSaver{}, Options{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Activate(ctx)
	cancel()
	assert.Equal(t, Blocked, settle(t, ch))
}

func TestActivate_Twice(t *testing.T) {
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Authorized}, &recordingSaver{}, Options{})
	defer c.Close()

	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))
	assert.Equal(t, Ready, settle(t, c.Activate(context.Background())))
}

func TestActivate_WhilePromptPending(t *testing.T) {
	auth := &gatedAuthorizer{release: make(chan struct{})}
	c := NewController(syntheticOnly(camera.Front), auth, &recordingSaver{}, Options{})
	defer c.Close()

	first := c.Activate(context.Background())
	require.Eventually(t, func() bool { return auth.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, Uninitialized, settle(t, c.Activate(context.Background())))

	close(auth.release)
	assert.Equal(t, Ready, settle(t, first))
	assert.Equal(t, 1, auth.count(), "only one permission prompt")
}

func TestActivate_ConfiguresSession(t *testing.T) {
	preview := &recordingPreview{}
	var mu sync.Mutex
	var running []bool
	opts := Options{
		Preview: preview,
		OnRunning: func(on bool) {
			mu.Lock()
			running = append(running, on)
			mu.Unlock()
		},
	}
	c := NewController(camera.SyntheticDiscoverer(32, 24, 80), fixedAuthorizer{camera.Authorized}, &recordingSaver{}, opts)

	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))
	assert.Equal(t, "synthetic-front", preview.attached)

	c.Close()
	c.Close()
	assert.Equal(t, Closed, c.State())
	assert.GreaterOrEqual(t, preview.detached, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, running)
}

// ---------- capture ----------

func TestCapture_PersistsPhoto(t *testing.T) {
	saver := &recordingSaver{}
	var saved []*Result
	opts := Options{OnSaved: func(_ context.Context, r *Result) { saved = append(saved, r) }}
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Authorized}, saver, opts)
	defer c.Close()
	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))

	p, err := c.Capture(context.Background())
	require.NoError(t, err)
	res, err := p.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "photo.jpg", res.File.Name)
	assert.Equal(t, "synthetic-front", res.DeviceID)
	assert.NotEmpty(t, res.Data)
	assert.Equal(t, 1, saver.count())
	assert.Same(t, res, c.LastCaptured())
	assert.Len(t, saved, 1)
	assert.Equal(t, Ready, c.State(), "state stays Ready after a capture")
}

func TestCapture_NotReady(t *testing.T) {
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Denied}, &recordingSaver{}, Options{})
	defer c.Close()

	_, err := c.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)

	settle(t, c.Activate(context.Background()))
	_, err = c.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCapture_AfterClose(t *testing.T) {
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Authorized}, &recordingSaver{}, Options{})
	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))
	c.Close()

	_, err := c.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCapture_NoData(t *testing.T) {
	saver := &recordingSaver{}
	d := camera.DiscovererFunc(func() []camera.Device { return []camera.Device{emptyDevice{}} })
	c := NewController(d, fixedAuthorizer{camera.Authorized}, saver, Options{})
	defer c.Close()
	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))

	p, err := c.Capture(context.Background())
	require.NoError(t, err)
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoPhotoData)
	assert.Equal(t, 0, saver.count())
	assert.Nil(t, c.LastCaptured())
	assert.Equal(t, Ready, c.State())
}

func TestCapture_SaveFailure(t *testing.T) {
	saveErr := errors.New("disk full")
	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Authorized}, &recordingSaver{err: saveErr}, Options{})
	defer c.Close()
	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))

	p, err := c.Capture(context.Background())
	require.NoError(t, err)
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, saveErr)
	assert.Nil(t, c.LastCaptured())
}

func TestCapture_WithPhotoStore(t *testing.T) {
	store := photostore.New(t.TempDir(), photostore.Options{})
	require.NoError(t, store.Initialize())

	c := NewController(syntheticOnly(camera.Front), fixedAuthorizer{camera.Authorized}, store, Options{})
	defer c.Close()
	require.Equal(t, Ready, settle(t, c.Activate(context.Background())))

	results, err := RunSequence(context.Background(), c, SequenceParams{Count: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)

	for _, r := range results {
		p, err := store.Get(r.File.Name)
		require.NoError(t, err)
		assert.Equal(t, r.Data, p.Data)
		assert.Equal(t, 32, p.Width)
	}
}
