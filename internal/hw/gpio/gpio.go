package gpio

import (
	"github.com/cjeanneret/GoSnap/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
type MockDriver struct{}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

// Indicator drives a single "camera in use" LED. The LED is lit (HIGH)
// while a capture session is running.
// A nil *Indicator is valid and does nothing.
type Indicator struct {
	gpio Driver
	pin  int
}

// NewIndicator configures pin as an output and switches the LED off.
// pin <= 0 returns nil (no indicator wired).
func NewIndicator(g Driver, pin int) (*Indicator, error) {
	if g == nil || pin <= 0 {
		return nil, nil
	}
	if err := g.SetupPin(pin, Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(pin, Low); err != nil {
		return nil, err
	}
	return &Indicator{gpio: g, pin: pin}, nil
}

// Set switches the LED on or off.
func (i *Indicator) Set(on bool) error {
	if i == nil {
		return nil
	}
	debug.Verbose("Indicator: pin %d -> %v", i.pin, on)
	return i.gpio.WritePin(i.pin, Level(on))
}
