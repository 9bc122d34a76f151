package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cjeanneret/GoSnap/internal/config"
	"github.com/cjeanneret/GoSnap/internal/debug"
	"github.com/cjeanneret/GoSnap/internal/hw/camera"
	"github.com/cjeanneret/GoSnap/internal/hw/gpio"
	"github.com/cjeanneret/GoSnap/internal/logic/capture"
	"github.com/cjeanneret/GoSnap/internal/storage/catalog"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
	"github.com/cjeanneret/GoSnap/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	shots := flag.Int("shots", 1, "number of photos to take in headless mode")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between photos in headless mode")
	list := flag.Bool("list", false, "list stored photos and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration: .env first so GOSNAP_* variables are visible to ApplyEnv
	config.LoadEnv()
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if err := validateSequenceFlags(*shots, *interval); err != nil {
		log.Fatalf("invalid flag: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Photo store
	debug.Step(1, "Initializing photo store")
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("photo store: %v", err)
	}
	debug.Value("Photo dir", store.Dir())

	if *list {
		if err := listPhotos(ctx, store, os.Stdout); err != nil {
			log.Fatalf("list photos: %v", err)
		}
		return
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(2, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	indicator, err := gpio.NewIndicator(gpioDriver, cfg.Camera.IndicatorPin)
	if err != nil {
		log.Fatalf("init indicator failed: %v", err)
	}
	debug.Value("Indicator pin", cfg.Camera.IndicatorPin)

	// Camera
	debug.Step(3, "Initializing camera")
	discoverer, err := newDiscovererFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	auth, err := newAuthorizerFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera permission failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Facing", cfg.Camera.Facing)
	debug.Value("Permission", auth.Status())

	// Optional catalog
	var cat *catalog.Catalog
	if cfg.Catalog.Enabled {
		debug.Step(4, "Opening catalog")
		cat, err = catalog.Open(cfg.CatalogPath())
		if err != nil {
			log.Fatalf("open catalog: %v", err)
		}
		defer cat.Close()
		debug.Value("Catalog", cfg.CatalogPath())
	}

	newController := func(preview capture.PreviewSink) *capture.Controller {
		return capture.NewController(discoverer, auth, store, capture.Options{
			Facing:  camera.Facing(cfg.Camera.Facing),
			Preview: preview,
			OnRunning: func(on bool) {
				if err := indicator.Set(on); err != nil {
					debug.Errorf("indicator: %v", err)
				}
			},
			OnSaved: recordCapture(cat),
		})
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		screen := web.NewScreen(newController, broadcaster)
		defer screen.Close()
		srv := web.NewServer(webAddr, web.Deps{
			Broadcaster:     broadcaster,
			Screen:          screen,
			Store:           store,
			Catalog:         cat,
			ThumbnailMaxDim: cfg.Storage.ThumbnailMaxDim,
		})
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	results, err := runHeadless(ctx, newController(nil), capture.SequenceParams{Count: *shots, Interval: *interval})
	for _, r := range results {
		fmt.Println(r.File.Path)
	}
	if err != nil {
		log.Fatalf("capture failed: %v", err)
	}
}

// runHeadless activates a controller, takes a sequence of photos and closes it.
func runHeadless(ctx context.Context, c *capture.Controller, p capture.SequenceParams) ([]*capture.Result, error) {
	defer c.Close()

	debug.Section("Camera")
	var state capture.State
	select {
	case state = <-c.Activate(ctx):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if state != capture.Ready {
		select {
		case a := <-c.Alerts():
			return nil, fmt.Errorf("camera %s: %s", state, a.Message)
		default:
			return nil, fmt.Errorf("camera %s", state)
		}
	}

	debug.Section("Starting Capture Sequence")
	results, err := capture.RunSequence(ctx, c, p)
	if err != nil {
		return results, err
	}
	debug.Section("Sequence Complete")
	return results, nil
}

// recordCapture returns an OnSaved hook writing captures to cat, or nil
// when the catalog is disabled.
func recordCapture(cat *catalog.Catalog) func(context.Context, *capture.Result) {
	if cat == nil {
		return nil
	}
	return func(ctx context.Context, r *capture.Result) {
		if _, err := cat.Record(ctx, r.File.Name, r.DeviceID, r.Data, r.TakenAt); err != nil {
			debug.Errorf("catalog: %v", err)
		}
	}
}

// listPhotos prints every decodable photo in the store.
func listPhotos(ctx context.Context, store *photostore.Store, w io.Writer) error {
	photos, err := store.GetAll(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFORMAT\tSIZE\tTAKEN")
	for _, p := range photos {
		taken := "-"
		if !p.TakenAt.IsZero() {
			taken = p.TakenAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%s\n", p.Name, p.Format, p.Width, p.Height, taken)
	}
	return tw.Flush()
}

// validateSequenceFlags checks the headless sequence flags.
func validateSequenceFlags(shots int, interval time.Duration) error {
	if shots < 1 || shots > 1000 {
		return fmt.Errorf("shots must be between 1 and 1000, got %d", shots)
	}
	if interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", interval)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newDiscovererFromConfig selects a camera implementation based on configuration.
func newDiscovererFromConfig(cfg *config.Config) (camera.Discoverer, error) {
	switch cfg.Camera.Type {
	case "synthetic":
		return camera.SyntheticDiscoverer(cfg.Camera.WidthPx, cfg.Camera.HeightPx, cfg.Camera.JPEGQuality), nil
	case "directory":
		facing, err := camera.ParseFacing(cfg.Camera.Facing)
		if err != nil {
			return nil, err
		}
		return camera.DirectoryDiscoverer(cfg.Camera.SourceDir, facing), nil
	case "none":
		return camera.NoHardware, nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newAuthorizerFromConfig builds the permission gate from camera.permission.
func newAuthorizerFromConfig(cfg *config.Config) (*camera.StaticAuthorizer, error) {
	status, err := camera.ParseAuthorizationStatus(cfg.Camera.Permission)
	if err != nil {
		return nil, err
	}
	return camera.NewStaticAuthorizer(status, cfg.Camera.PromptAnswer), nil
}

// openStore builds the photo store and creates its directory. A directory
// that cannot be created is logged but not fatal: the store stays usable
// for reads and later writes report ErrStoreUnavailable.
func openStore(cfg *config.Config) (*photostore.Store, error) {
	store, err := newStoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	// Initialize logs its own failure.
	_ = store.Initialize()
	return store, nil
}

// newStoreFromConfig builds the photo store described by the storage section.
func newStoreFromConfig(cfg *config.Config) (*photostore.Store, error) {
	policy, err := photostore.ParseCollisionPolicy(cfg.Storage.Collision)
	if err != nil {
		return nil, fmt.Errorf("storage.collision: %w", err)
	}
	return photostore.New(cfg.Storage.DocumentsDir, photostore.Options{
		RelativePath: cfg.Storage.RelativePath,
		Suffix:       cfg.Storage.Suffix,
		Collision:    policy,
		Workers:      cfg.Storage.LoadWorkers,
	}), nil
}
