// Package keypad provides a Go client for a six-button serial macro keypad,
// along with a monitor that swaps the loaded combos based on which programs
// are running.
package keypad

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Serial settings used when none are given.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)

// Port is an open byte stream to a keypad. [serial.Port] satisfies it.
type Port interface {
	io.ReadWriteCloser
	// Drain blocks until everything written has been transmitted.
	Drain() error
}

// PortLister enumerates the names of candidate serial ports.
type PortLister func() ([]string, error)

// PortOpener opens and configures the named port.
type PortOpener func(name string, baudRate int, readTimeout time.Duration) (Port, error)

type config struct {
	baudRate    int
	readTimeout time.Duration
	logger      *slog.Logger
	listPorts   PortLister
	openPort    PortOpener
}

func defaultConfig() config {
	return config{
		baudRate:    DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
		logger:      slog.Default(),
		listPorts:   serial.GetPortsList,
		openPort:    openSerialPort,
	}
}

// Option configures how a keypad connection is opened.
type Option func(*config)

// WithBaudRate overrides the serial baud rate.
func WithBaudRate(baud int) Option {
	return func(c *config) {
		if baud > 0 {
			c.baudRate = baud
		}
	}
}

// WithReadTimeout overrides how long a read may block before the device is
// considered unresponsive.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.readTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for the connection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPortLister replaces serial port enumeration.
func WithPortLister(list PortLister) Option {
	return func(c *config) {
		if list != nil {
			c.listPorts = list
		}
	}
}

// WithPortOpener replaces how ports are opened.
func WithPortOpener(open PortOpener) Option {
	return func(c *config) {
		if open != nil {
			c.openPort = open
		}
	}
}

func openSerialPort(name string, baudRate int, readTimeout time.Duration) (Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("cannot set read timeout: %w", err)
	}

	return port, nil
}

// Keypad is an open, handshaken connection to a keypad. It owns its port
// until Close is called.
//
// Commands on one Keypad are serialized; they never interleave on the wire.
type Keypad struct {
	mu     sync.Mutex
	port   Port
	name   string
	logger *slog.Logger
}

// Open opens the named port and performs the handshake. The port is closed
// again if the handshake fails.
func Open(ctx context.Context, name string, opts ...Option) (*Keypad, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return open(ctx, name, cfg)
}

func open(ctx context.Context, name string, cfg config) (*Keypad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := cfg.openPort(name, cfg.baudRate, cfg.readTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerial, name, err)
	}

	k := &Keypad{
		port:   port,
		name:   name,
		logger: cfg.logger.With("port", name),
	}

	if err := k.handshake(ctx); err != nil {
		_ = port.Close()
		return nil, err
	}

	return k, nil
}

// AutoDetect tries every available serial port in turn and returns the first
// one that answers the handshake. Ports that fail to open or to handshake are
// closed and skipped.
func AutoDetect(ctx context.Context, opts ...Option) (*Keypad, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.logger.DebugContext(ctx, "beginning keypad auto-detect")

	names, err := cfg.listPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot enumerate ports: %w", ErrSerial, err)
	}

	cfg.logger.DebugContext(ctx, "found serial ports", "count", len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		k, err := open(ctx, name, cfg)
		if err != nil {
			cfg.logger.DebugContext(ctx,
				"port is not a keypad",
				"port", name,
				"err", err)
			continue
		}

		cfg.logger.InfoContext(ctx, "keypad detected", "port", name)
		return k, nil
	}

	return nil, ErrNoDeviceFound
}

// Port returns the name of the port the keypad is connected on.
func (k *Keypad) Port() string {
	return k.name
}

// Close closes the underlying port.
func (k *Keypad) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.port.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrSerialCommunication, k.name, err)
	}
	return nil
}

// SendCombos writes combos to the device and returns what the device reports
// it now stores. Callers that need the write to have taken effect must
// compare the result with combos.
func (k *Keypad) SendCombos(ctx context.Context, combos Combos) (Combos, error) {
	if err := combos.Validate(); err != nil {
		return Combos{}, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.send(ctx, WriteKeys{Combos: combos}); err != nil {
		return Combos{}, err
	}
	return k.readCombos(ctx)
}

// GetCombos returns the combos currently stored on the device.
func (k *Keypad) GetCombos(ctx context.Context) (Combos, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.send(ctx, ReadKeys{}); err != nil {
		return Combos{}, err
	}
	return k.readCombos(ctx)
}

// FlashKeys blinks the buttons whose flag is set.
func (k *Keypad) FlashKeys(ctx context.Context, buttons [ButtonCount]bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	cmd := Flash{Buttons: buttons}
	k.logger.DebugContext(ctx, "flashing keys", "mask", fmt.Sprintf("%06b", cmd.Mask()))

	if err := k.send(ctx, cmd); err != nil {
		return err
	}
	return k.waitForAcknowledge()
}

func (k *Keypad) handshake(ctx context.Context) error {
	k.logger.DebugContext(ctx, "sending handshake")

	if err := k.send(ctx, Hello{}); err != nil {
		return err
	}

	if err := k.waitForAcknowledge(); err != nil {
		k.logger.DebugContext(ctx,
			"no handshake",
			"err", err)
		return err
	}

	k.logger.DebugContext(ctx, "handshake returned")
	return nil
}

// send writes one command frame and waits for it to leave the host.
func (k *Keypad) send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame := cmd.EncodeCommand()
	k.logger.DebugContext(ctx,
		"writing command",
		"command", fmt.Sprintf("%c", frame[0]),
		"len", len(frame))

	n, err := k.port.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: write command %q: %w", ErrSerialCommunication, frame[0], err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write of command %q: %d of %d bytes", ErrSerialCommunication, frame[0], n, len(frame))
	}

	if err := k.port.Drain(); err != nil {
		return fmt.Errorf("%w: flush command %q: %w", ErrSerialCommunication, frame[0], err)
	}

	return nil
}

func (k *Keypad) waitForAcknowledge() error {
	var resp [1]byte
	if err := k.readFull(resp[:]); err != nil {
		return err
	}
	if resp[0] != cmdAck {
		return fmt.Errorf("%w: got 0x%02X", ErrNoAcknowledge, resp[0])
	}
	return nil
}

func (k *Keypad) readCombos(ctx context.Context) (Combos, error) {
	resp := make([]byte, CombosSize)
	if err := k.readFull(resp); err != nil {
		return Combos{}, err
	}

	combos, err := DecodeCombos(resp)
	if err != nil {
		k.logger.ErrorContext(ctx,
			"cannot parse combos from device",
			"err", err)
		return Combos{}, err
	}

	for i, combo := range combos {
		k.logger.DebugContext(ctx,
			"device combo",
			"button", i,
			"combo", combo.String())
	}

	return combos, nil
}

// readFull fills buf from the port. A read that returns no data and no error
// means the port's read timeout expired.
func (k *Keypad) readFull(buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := k.port.Read(buf[n:])
		n += m
		if err != nil {
			return fmt.Errorf("%w: read %d of %d bytes: %w", ErrSerialCommunication, n, len(buf), err)
		}
		if m == 0 {
			return fmt.Errorf("%w: %w after %d of %d bytes", ErrSerialCommunication, ErrTimeout, n, len(buf))
		}
	}
	return nil
}
