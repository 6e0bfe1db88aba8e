package keypad_test

import (
	"bytes"
	"errors"
	"sync"
	"time"

	keypad "libdb.so/go-keypad"
)

// fakePort is an in-memory serial port. Every Write is handed to respond and
// whatever it returns becomes readable. A Read with nothing pending returns
// (0, nil), which is how a serial port reports an expired read timeout.
type fakePort struct {
	mu      sync.Mutex
	respond func(frame []byte) []byte
	written [][]byte
	pending bytes.Buffer
	chunk   int
	closed  bool

	writeErr error
	drainErr error
}

func newFakePort(respond func(frame []byte) []byte) *fakePort {
	return &fakePort{respond: respond, chunk: 7}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.pending.Len() == 0 {
		return 0, nil
	}
	if len(b) > p.chunk {
		b = b[:p.chunk]
	}
	return p.pending.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	frame := append([]byte(nil), b...)
	p.written = append(p.written, frame)
	if p.respond != nil {
		p.pending.Write(p.respond(frame))
	}
	return len(b), nil
}

func (p *fakePort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drainErr
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// FailWrites makes every following Write fail with err.
func (p *fakePort) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// FailDrains makes every following Drain fail with err.
func (p *fakePort) FailDrains(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainErr = err
}

func (p *fakePort) Written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.written...)
}

func (p *fakePort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeKeypad emulates the keypad firmware behind a fakePort.
type fakeKeypad struct {
	mu      sync.Mutex
	stored  keypad.Combos
	flashed []byte
	// ignoreWrites makes the firmware echo the old combos on a write.
	ignoreWrites bool
}

func newFakeKeypad() *fakeKeypad {
	return &fakeKeypad{stored: keypad.DefaultCombos()}
}

func (f *fakeKeypad) Port() *fakePort {
	return newFakePort(f.respond)
}

func (f *fakeKeypad) respond(frame []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch frame[0] {
	case 'H':
		return []byte{'A'}
	case 'R':
		return f.stored.Encode()
	case 'W':
		if !f.ignoreWrites {
			combos, err := keypad.DecodeCombos(frame[1:])
			if err != nil {
				return nil
			}
			f.stored = combos
		}
		return f.stored.Encode()
	case 'F':
		f.flashed = append(f.flashed, frame[1])
		return []byte{'A'}
	default:
		return nil
	}
}

func (f *fakeKeypad) Store(combos keypad.Combos) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = combos
}

func (f *fakeKeypad) IgnoreWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoreWrites = true
}

func (f *fakeKeypad) Stored() keypad.Combos {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored
}

func (f *fakeKeypad) Flashed() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.flashed...)
}

// fakeBus maps port names to ports for AutoDetect.
type fakeBus struct {
	mu      sync.Mutex
	ports   map[string]func() (keypad.Port, error)
	names   []string
	opened  []string
	timeout time.Duration
}

func newFakeBus() *fakeBus {
	return &fakeBus{ports: make(map[string]func() (keypad.Port, error))}
}

func (b *fakeBus) Add(name string, open func() (keypad.Port, error)) {
	b.names = append(b.names, name)
	b.ports[name] = open
}

func (b *fakeBus) List() ([]string, error) {
	return append([]string(nil), b.names...), nil
}

func (b *fakeBus) Open(name string, _ int, timeout time.Duration) (keypad.Port, error) {
	b.mu.Lock()
	b.opened = append(b.opened, name)
	b.timeout = timeout
	open := b.ports[name]
	b.mu.Unlock()

	if open == nil {
		return nil, errors.New("no such port")
	}
	return open()
}

func (b *fakeBus) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// Timeout returns the read timeout of the last Open.
func (b *fakeBus) Timeout() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeout
}

func (b *fakeBus) Options() []keypad.Option {
	return []keypad.Option{
		keypad.WithPortLister(b.List),
		keypad.WithPortOpener(b.Open),
	}
}

func portOf(p *fakePort) func() (keypad.Port, error) {
	return func() (keypad.Port, error) { return p, nil }
}

func sampleCombos() keypad.Combos {
	return keypad.Combos{
		keypad.Single(keypad.Ctrl().Key(keypad.KeyC)),
		keypad.Single(keypad.Ctrl().Key(keypad.KeyV)),
		keypad.Chord(keypad.Ctrl().Key(keypad.KeyK), keypad.Ctrl().Key(keypad.KeyC)),
		keypad.Single(keypad.Press(keypad.KeyF5)),
		keypad.Single(keypad.Alt().Shift().Key(keypad.KeyPadEnter)),
		keypad.Chord(keypad.Windows().Key(keypad.KeyD), keypad.Press(keypad.KeyEsc)),
	}
}
