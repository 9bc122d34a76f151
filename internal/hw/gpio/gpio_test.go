package gpio

import (
	"errors"
	"testing"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls    []gpioCall
	writeErr error
}

type gpioCall struct {
	op    string
	pin   int
	level Level
}

func (d *recordingDriver) SetupPin(pin int, mode PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level Level) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (Level, error) { return Low, nil }

func (d *recordingDriver) Close() error { return nil }

func TestNewIndicator_InitializedLow(t *testing.T) {
	drv := &recordingDriver{}
	ind, err := NewIndicator(drv, 18)
	if err != nil {
		t.Fatalf("NewIndicator: %v", err)
	}
	if ind == nil {
		t.Fatal("expected an indicator for pin 18")
	}

	want := []gpioCall{{op: "setup", pin: 18}, {op: "write", pin: 18, level: Low}}
	if len(drv.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", drv.calls, want)
	}
	for i := range want {
		if drv.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], want[i])
		}
	}
}

func TestNewIndicator_NoPin(t *testing.T) {
	drv := &recordingDriver{}
	ind, err := NewIndicator(drv, 0)
	if err != nil {
		t.Fatalf("NewIndicator: %v", err)
	}
	if ind != nil {
		t.Error("pin 0 should not create an indicator")
	}
	if len(drv.calls) != 0 {
		t.Errorf("no GPIO calls expected, got %v", drv.calls)
	}
	// nil indicator is usable
	if err := ind.Set(true); err != nil {
		t.Errorf("nil indicator Set: %v", err)
	}
}

func TestIndicator_SetOnOff(t *testing.T) {
	drv := &recordingDriver{}
	ind, _ := NewIndicator(drv, 7)
	drv.calls = nil

	if err := ind.Set(true); err != nil {
		t.Fatal(err)
	}
	if err := ind.Set(false); err != nil {
		t.Fatal(err)
	}
	if len(drv.calls) != 2 || drv.calls[0].level != High || drv.calls[1].level != Low {
		t.Errorf("unexpected writes: %v", drv.calls)
	}
}

func TestNewIndicator_WriteError(t *testing.T) {
	drv := &recordingDriver{writeErr: errors.New("bus error")}
	if _, err := NewIndicator(drv, 7); err == nil {
		t.Error("expected error when the initial write fails")
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(mock): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("expected *MockDriver, got %T", d)
	}
	if err := d.WritePin(3, High); err != nil {
		t.Errorf("mock WritePin: %v", err)
	}
}
