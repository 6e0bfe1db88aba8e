package keypad

import (
	"context"
	"errors"
	"sync"
)

// Device is a shared handle to the keypad. All callers go through one mutex,
// so a manual apply and the monitor can never interleave on the wire.
//
// The connection is established on first use, by auto-detection or on a
// fixed port. When a command fails the connection is closed and forgotten,
// and the next call connects again.
type Device struct {
	mu     sync.Mutex
	keypad *Keypad
	port   string
	opts   []Option
}

// NewDevice returns a Device that auto-detects the keypad on first use.
func NewDevice(opts ...Option) *Device {
	return &Device{opts: opts}
}

// NewDeviceOnPort returns a Device that always connects on the named port.
func NewDeviceOnPort(name string, opts ...Option) *Device {
	return &Device{port: name, opts: opts}
}

// Connect establishes the connection now instead of on first use.
func (d *Device) Connect(ctx context.Context) error {
	return d.do(ctx, func(*Keypad) error { return nil })
}

// SendCombos writes combos and returns the device's read-back.
// See [Keypad.SendCombos].
func (d *Device) SendCombos(ctx context.Context, combos Combos) (Combos, error) {
	if err := combos.Validate(); err != nil {
		return Combos{}, err
	}

	var stored Combos
	err := d.do(ctx, func(k *Keypad) (err error) {
		stored, err = k.SendCombos(ctx, combos)
		return err
	})
	return stored, err
}

// GetCombos returns the combos stored on the device.
func (d *Device) GetCombos(ctx context.Context) (Combos, error) {
	var stored Combos
	err := d.do(ctx, func(k *Keypad) (err error) {
		stored, err = k.GetCombos(ctx)
		return err
	})
	return stored, err
}

// FlashKeys blinks the buttons whose flag is set.
func (d *Device) FlashKeys(ctx context.Context, buttons [ButtonCount]bool) error {
	return d.do(ctx, func(k *Keypad) error {
		return k.FlashKeys(ctx, buttons)
	})
}

// Port returns the port of the current connection, or "" when not connected.
func (d *Device) Port() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.keypad == nil {
		return ""
	}
	return d.keypad.Port()
}

// Close closes the current connection, if any.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.keypad == nil {
		return nil
	}
	err := d.keypad.Close()
	d.keypad = nil
	return err
}

func (d *Device) do(ctx context.Context, fn func(*Keypad) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.keypad == nil {
		k, err := d.connect(ctx)
		if err != nil {
			return err
		}
		d.keypad = k
	}

	err := fn(d.keypad)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		// The stream may be out of step with the device; start over.
		_ = d.keypad.Close()
		d.keypad = nil
	}
	return err
}

func (d *Device) connect(ctx context.Context) (*Keypad, error) {
	if d.port != "" {
		return Open(ctx, d.port, d.opts...)
	}
	return AutoDetect(ctx, d.opts...)
}
