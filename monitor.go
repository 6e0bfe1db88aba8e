package keypad

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often the monitor inspects running processes.
const DefaultPollInterval = time.Second

// Applier loads combos onto a keypad. [*Device] and [*Keypad] implement it.
type Applier interface {
	SendCombos(ctx context.Context, combos Combos) (Combos, error)
}

// Notification reports one attempt by the monitor to apply a profile.
type Notification struct {
	// Profile is the profile the monitor tried to apply.
	Profile Profile
	// Stored is what the device reported storing. It is only set when Err
	// is nil.
	Stored Combos
	// Confirmed is whether Stored matches Profile.Combos.
	Confirmed bool
	// Err is the device error, if the attempt failed.
	Err error
}

// NotifyFunc receives monitor notifications. It is called from the monitor
// goroutine and should return quickly.
type NotifyFunc func(Notification)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithPollInterval sets how often processes are inspected.
func WithPollInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithProcessLister replaces the source of process snapshots.
func WithProcessLister(lister ProcessLister) MonitorOption {
	return func(m *Monitor) {
		if lister != nil {
			m.processes = lister
		}
	}
}

// WithNotify sets the function receiving notifications.
func WithNotify(fn NotifyFunc) MonitorOption {
	return func(m *Monitor) {
		m.notify = fn
	}
}

// Monitor polls the process table and loads the matching profile onto the
// keypad whenever the decision of its [Switcher] changes.
type Monitor struct {
	applier   Applier
	processes ProcessLister
	interval  time.Duration
	notify    NotifyFunc

	mu       sync.Mutex
	profiles []Profile
	updated  chan struct{}
}

// NewMonitor creates a monitor for profiles. The first profile is the
// default one. The monitor does nothing until Run or Start is called.
func NewMonitor(profiles []Profile, applier Applier, opts ...MonitorOption) (*Monitor, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if applier == nil {
		return nil, ErrNoApplier
	}

	m := &Monitor{
		applier:   applier,
		processes: SystemProcesses{},
		interval:  DefaultPollInterval,
		profiles:  append([]Profile(nil), profiles...),
		updated:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Profiles returns the current profile list.
func (m *Monitor) Profiles() []Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Profile(nil), m.profiles...)
}

// UpdateProfiles replaces the whole profile list. A running monitor picks up
// the new list before its next poll and restarts from the default state,
// applying either the new default profile or the first watched program that
// is running.
func (m *Monitor) UpdateProfiles(profiles []Profile) error {
	if len(profiles) == 0 {
		return ErrNoProfiles
	}

	m.mu.Lock()
	m.profiles = append([]Profile(nil), profiles...)
	m.mu.Unlock()

	select {
	case m.updated <- struct{}{}:
	default:
		// An update is already pending; it will read the new list.
	}
	return nil
}

// Run polls until ctx is done. A poll that is applying a profile when ctx is
// cancelled completes first.
func (m *Monitor) Run(ctx context.Context, logger *slog.Logger) error {
	switcher, err := NewSwitcher(m.Profiles())
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// pending is a decision that has not reached the device yet.
	var pending *Profile

	for {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		pending = m.poll(ctx, logger, switcher, pending)

		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case <-m.updated:
			switcher, err = NewSwitcher(m.Profiles())
			if err != nil {
				return err
			}
			// The device may hold a profile that no longer exists. Load the
			// new default unless the next poll finds a watched program.
			def := switcher.Default()
			pending = &def
			logger.InfoContext(ctx,
				"profiles updated",
				"count", len(m.Profiles()))

		case <-ticker.C:
		}
	}
}

// Start runs the monitor in a new goroutine. The returned function stops it
// and waits for it to exit.
func (m *Monitor) Start(ctx context.Context, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := m.Run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(
				"profile monitor stopped",
				"err", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (m *Monitor) poll(ctx context.Context, logger *slog.Logger, switcher *Switcher, pending *Profile) *Profile {
	snapshot, err := m.processes.Snapshot()
	if err != nil {
		logger.ErrorContext(ctx,
			"cannot inspect running processes",
			"err", err)
		return pending
	}

	if next, ok := switcher.Next(snapshot); ok {
		logger.InfoContext(ctx,
			"switching profile",
			"profile", next.String())
		pending = &next
	}

	if pending == nil {
		return nil
	}

	if !m.apply(ctx, logger, *pending) {
		return pending
	}
	return nil
}

// apply loads profile onto the device and reports whether the device
// accepted it.
func (m *Monitor) apply(ctx context.Context, logger *slog.Logger, profile Profile) bool {
	n := Notification{Profile: profile}

	stored, err := m.applier.SendCombos(ctx, profile.Combos)
	if err != nil {
		logger.ErrorContext(ctx,
			"cannot apply profile",
			"profile", profile.Name,
			"err", err)
		n.Err = err
	} else {
		n.Stored = stored
		n.Confirmed = stored.Equal(profile.Combos)
		if !n.Confirmed {
			logger.WarnContext(ctx,
				"device stored different combos than requested",
				"profile", profile.Name)
		}
	}

	if m.notify != nil {
		m.notify(n)
	}
	return n.Err == nil
}
