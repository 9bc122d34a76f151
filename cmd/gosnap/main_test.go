package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/GoSnap/internal/config"
	"github.com/cjeanneret/GoSnap/internal/hw/camera"
	"github.com/cjeanneret/GoSnap/internal/logic/capture"
	"github.com/cjeanneret/GoSnap/internal/storage/catalog"
	"github.com/cjeanneret/GoSnap/internal/storage/photostore"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- validateSequenceFlags ----------

func TestValidateSequenceFlags(t *testing.T) {
	cases := []struct {
		name     string
		shots    int
		interval time.Duration
		wantErr  bool
	}{
		{"single", 1, 0, false},
		{"max", 1000, time.Second, false},
		{"zero_shots", 0, 0, true},
		{"negative_shots", -2, 0, true},
		{"too_many", 1001, 0, true},
		{"negative_interval", 3, -time.Millisecond, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSequenceFlags(tc.shots, tc.interval)
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// ---------- factories ----------

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Camera: config.CameraConfig{
			Type:        "synthetic",
			Facing:      config.FacingFront,
			Permission:  config.PermissionAuthorized,
			WidthPx:     64,
			HeightPx:    48,
			JPEGQuality: 80,
		},
		Storage: config.StorageConfig{
			DocumentsDir: t.TempDir(),
			RelativePath: "ImageViewer/takenPhotos",
			Suffix:       "_taken.jpg",
			Collision:    config.CollisionSuffix,
			LoadWorkers:  2,
		},
		Defaults: config.DefaultsConfig{MockGPIO: true},
	}
}

func TestNewDiscovererFromConfig(t *testing.T) {
	cfg := newTestConfig(t)

	d, err := newDiscovererFromConfig(cfg)
	if err != nil {
		t.Fatalf("synthetic: %v", err)
	}
	if n := len(d.Devices()); n != 2 {
		t.Errorf("synthetic devices = %d, want 2", n)
	}

	cfg.Camera.Type = "none"
	d, err = newDiscovererFromConfig(cfg)
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if n := len(d.Devices()); n != 0 {
		t.Errorf("none devices = %d, want 0", n)
	}

	cfg.Camera.Type = "directory"
	cfg.Camera.SourceDir = filepath.Join(t.TempDir(), "missing")
	d, err = newDiscovererFromConfig(cfg)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if n := len(d.Devices()); n != 0 {
		t.Errorf("directory devices for a missing dir = %d, want 0", n)
	}

	cfg.Camera.Type = "nikon_d90_gpio"
	if _, err := newDiscovererFromConfig(cfg); err == nil {
		t.Error("expected error for unsupported camera type")
	}
}

func TestNewAuthorizerFromConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Camera.Permission = config.PermissionNotDetermined
	cfg.Camera.PromptAnswer = true

	a, err := newAuthorizerFromConfig(cfg)
	if err != nil {
		t.Fatalf("newAuthorizerFromConfig: %v", err)
	}
	if a.Status() != camera.NotDetermined {
		t.Errorf("status = %v, want not determined", a.Status())
	}
	granted, err := a.RequestAccess(context.Background())
	if err != nil || !granted {
		t.Errorf("RequestAccess = %v, %v; want true, nil", granted, err)
	}

	cfg.Camera.Permission = "maybe"
	if _, err := newAuthorizerFromConfig(cfg); err == nil {
		t.Error("expected error for unknown permission")
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	cfg := newTestConfig(t)
	s, err := newStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("newStoreFromConfig: %v", err)
	}
	if s.Dir() != cfg.PhotoDir() {
		t.Errorf("Dir() = %q, want %q", s.Dir(), cfg.PhotoDir())
	}

	cfg.Storage.Collision = "rename"
	if _, err := newStoreFromConfig(cfg); err == nil {
		t.Error("expected error for unknown collision policy")
	}
}

func TestRecordCapture_NilCatalog(t *testing.T) {
	if recordCapture(nil) != nil {
		t.Error("disabled catalog should not install a hook")
	}
}

// ---------- headless run ----------

func newHeadlessStore(t *testing.T, cfg *config.Config) *photostore.Store {
	t.Helper()
	s, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	return s
}

func TestOpenStore_UnusableDocumentsRoot(t *testing.T) {
	cfg := newTestConfig(t)
	root := filepath.Join(t.TempDir(), "documents")
	if err := os.WriteFile(root, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Storage.DocumentsDir = root

	store, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore should not fail on an unusable directory: %v", err)
	}

	var out bytes.Buffer
	err = listPhotos(context.Background(), store, &out)
	if !errors.Is(err, photostore.ErrStoreUnavailable) {
		t.Errorf("listPhotos err = %v, want ErrStoreUnavailable", err)
	}

	d, _ := newDiscovererFromConfig(cfg)
	auth, _ := newAuthorizerFromConfig(cfg)
	c := capture.NewController(d, auth, store, capture.Options{})
	results, err := runHeadless(context.Background(), c, capture.SequenceParams{Count: 2})
	if !errors.Is(err, photostore.ErrStoreUnavailable) {
		t.Errorf("runHeadless err = %v, want ErrStoreUnavailable", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
	if c.State() != capture.Closed {
		t.Errorf("state = %s, want closed", c.State())
	}
}

func TestRunHeadless_TakesAndListsPhotos(t *testing.T) {
	cfg := newTestConfig(t)
	store := newHeadlessStore(t, cfg)
	d, _ := newDiscovererFromConfig(cfg)
	auth, _ := newAuthorizerFromConfig(cfg)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer cat.Close()

	c := capture.NewController(d, auth, store, capture.Options{OnSaved: recordCapture(cat)})
	results, err := runHeadless(context.Background(), c, capture.SequenceParams{Count: 3})
	if err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if c.State() != capture.Closed {
		t.Errorf("state = %s, want closed", c.State())
	}

	entries, err := cat.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("catalog entries = %d, want 3", len(entries))
	}

	var out bytes.Buffer
	if err := listPhotos(context.Background(), store, &out); err != nil {
		t.Fatalf("listPhotos: %v", err)
	}
	if !strings.HasPrefix(out.String(), "NAME") {
		t.Errorf("missing header:\n%s", out.String())
	}
	for _, r := range results {
		if !strings.Contains(out.String(), r.File.Name) {
			t.Errorf("listing misses %s:\n%s", r.File.Name, out.String())
		}
	}
}

func TestRunHeadless_PermissionDenied(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Camera.Permission = config.PermissionDenied
	store := newHeadlessStore(t, cfg)
	d, _ := newDiscovererFromConfig(cfg)
	auth, _ := newAuthorizerFromConfig(cfg)

	c := capture.NewController(d, auth, store, capture.Options{})
	_, err := runHeadless(context.Background(), c, capture.SequenceParams{Count: 1})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), capture.AlertPermissionDenied.Message()) {
		t.Errorf("err = %v, want the permission alert text", err)
	}
}

func TestRunHeadless_NoCamera(t *testing.T) {
	cfg := newTestConfig(t)
	store := newHeadlessStore(t, cfg)

	c := capture.NewController(camera.NoHardware, camera.NewStaticAuthorizer(camera.Authorized, false), store, capture.Options{})
	if _, err := runHeadless(context.Background(), c, capture.SequenceParams{Count: 1}); err == nil {
		t.Error("expected error without a camera")
	}
}
