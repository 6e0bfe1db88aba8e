package keypad_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/neilotoole/slogt"
	keypad "libdb.so/go-keypad"
)

// scriptedProcesses returns one snapshot per poll, repeating the last one
// once the script runs out. Done is closed after extra polls past the end of
// the script.
type scriptedProcesses struct {
	mu     sync.Mutex
	script [][]string
	extra  int
	polls  int
	done   chan struct{}
}

func newScriptedProcesses(extra int, script ...[]string) *scriptedProcesses {
	return &scriptedProcesses{
		script: script,
		extra:  extra,
		done:   make(chan struct{}),
	}
}

func (s *scriptedProcesses) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// waitPolls blocks until n more polls have happened.
func (s *scriptedProcesses) waitPolls(t *testing.T, n int) {
	t.Helper()
	target := s.Polls() + n
	deadline := time.Now().Add(5 * time.Second)
	for s.Polls() < target {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the monitor to poll")
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *scriptedProcesses) Snapshot() (keypad.ProcessSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := min(s.polls, len(s.script)-1)
	s.polls++
	if s.polls == len(s.script)+s.extra {
		close(s.done)
	}
	return keypad.NewProcessSnapshot(s.script[i]...), nil
}

// recordingApplier stores every combo set it is asked to apply. The first
// failures calls fail, as does every call applying reject.
type recordingApplier struct {
	mu       sync.Mutex
	applied  []keypad.Combos
	failures int
	reject   *keypad.Combos
	stores   func(keypad.Combos) keypad.Combos
}

func (a *recordingApplier) SendCombos(ctx context.Context, combos keypad.Combos) (keypad.Combos, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.applied = append(a.applied, combos)
	if a.failures > 0 {
		a.failures--
		return keypad.Combos{}, keypad.ErrSerialCommunication
	}
	if a.reject != nil && a.reject.Equal(combos) {
		return keypad.Combos{}, keypad.ErrSerialCommunication
	}
	if a.stores != nil {
		return a.stores(combos), nil
	}
	return combos, nil
}

func (a *recordingApplier) Applied() []keypad.Combos {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]keypad.Combos(nil), a.applied...)
}

// profileNames maps applied combos back to profile names.
func profileNames(profiles []keypad.Profile, applied []keypad.Combos) []string {
	names := make([]string, 0, len(applied))
	for _, combos := range applied {
		name := "?"
		for _, p := range profiles {
			if p.Combos.Equal(combos) {
				name = p.Name
				break
			}
		}
		names = append(names, name)
	}
	return names
}

type notifications struct {
	mu  sync.Mutex
	all []keypad.Notification
	ch  chan keypad.Notification
}

func newNotifications() *notifications {
	return &notifications{ch: make(chan keypad.Notification, 64)}
}

func (n *notifications) Notify(notif keypad.Notification) {
	n.mu.Lock()
	n.all = append(n.all, notif)
	n.mu.Unlock()
	n.ch <- notif
}

func (n *notifications) All() []keypad.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]keypad.Notification(nil), n.all...)
}

func (n *notifications) Next(t *testing.T) keypad.Notification {
	t.Helper()
	select {
	case notif := <-n.ch:
		return notif
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a notification")
		return keypad.Notification{}
	}
}

func startMonitor(t *testing.T, m *keypad.Monitor) (stop func()) {
	logger := slogt.New(t).With("module", "monitor")
	stop = m.Start(context.Background(), logger)
	t.Cleanup(stop)
	return stop
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the monitor to poll")
	}
}

func TestMonitorSwitchesProfiles(t *testing.T) {
	profiles := testProfiles()
	procs := newScriptedProcesses(5,
		nil,
		[]string{"explorer.exe"},
		[]string{"foo.exe"},
		[]string{"foo.exe"},
		[]string{"bar.exe"},
		[]string{"bar.exe"},
		nil,
	)
	applier := &recordingApplier{}
	notifs := newNotifications()

	m, err := keypad.NewMonitor(profiles, applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs),
		keypad.WithNotify(notifs.Notify))
	assert.NoError(t, err)

	stop := startMonitor(t, m)
	waitDone(t, procs.done)
	stop()

	assert.Equal(t,
		[]string{"A", "B", "Default"},
		profileNames(profiles, applier.Applied()))

	for _, n := range notifs.All() {
		assert.NoError(t, n.Err)
		assert.True(t, n.Confirmed, "profile %s", n.Profile.Name)
		assert.True(t, n.Profile.Combos.Equal(n.Stored))
	}
}

func TestMonitorRetriesFailedApply(t *testing.T) {
	profiles := testProfiles()
	procs := newScriptedProcesses(5, []string{"foo.exe"})
	applier := &recordingApplier{failures: 2}
	notifs := newNotifications()

	m, err := keypad.NewMonitor(profiles, applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs),
		keypad.WithNotify(notifs.Notify))
	assert.NoError(t, err)

	stop := startMonitor(t, m)
	waitDone(t, procs.done)
	stop()

	assert.Equal(t,
		[]string{"A", "A", "A"},
		profileNames(profiles, applier.Applied()),
		"applies stop once one succeeds")

	all := notifs.All()
	assert.Equal(t, 3, len(all))
	assert.IsError(t, all[0].Err, keypad.ErrSerialCommunication)
	assert.IsError(t, all[1].Err, keypad.ErrSerialCommunication)
	assert.NoError(t, all[2].Err)
	assert.True(t, all[2].Confirmed)
}

func TestMonitorUnconfirmedApply(t *testing.T) {
	profiles := testProfiles()
	procs := newScriptedProcesses(3, []string{"bar.exe"})
	applier := &recordingApplier{
		stores: func(keypad.Combos) keypad.Combos { return keypad.DefaultCombos() },
	}
	notifs := newNotifications()

	m, err := keypad.NewMonitor(profiles, applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs),
		keypad.WithNotify(notifs.Notify))
	assert.NoError(t, err)

	stop := startMonitor(t, m)
	waitDone(t, procs.done)
	stop()

	all := notifs.All()
	assert.Equal(t, 1, len(all), "an unconfirmed apply is not retried")
	assert.Equal(t, "B", all[0].Profile.Name)
	assert.NoError(t, all[0].Err)
	assert.False(t, all[0].Confirmed)
}

func TestMonitorUpdateProfiles(t *testing.T) {
	profiles := testProfiles()
	procs := newScriptedProcesses(1, []string{"foo.exe"})
	applier := &recordingApplier{}
	notifs := newNotifications()

	m, err := keypad.NewMonitor(profiles, applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs),
		keypad.WithNotify(notifs.Notify))
	assert.NoError(t, err)

	startMonitor(t, m)
	assert.Equal(t, "A", notifs.Next(t).Profile.Name)

	updated := []keypad.Profile{
		keypad.NewProfile("Default"),
		watching("Foo", "FOO.EXE"),
	}
	assert.NoError(t, m.UpdateProfiles(updated))
	assert.Equal(t, updated, m.Profiles())

	assert.Equal(t, "Foo", notifs.Next(t).Profile.Name)

	assert.IsError(t, m.UpdateProfiles(nil), keypad.ErrNoProfiles)
	assert.Equal(t, updated, m.Profiles(), "a rejected update keeps the old list")
}

func TestMonitorUpdateAppliesNewDefault(t *testing.T) {
	profiles := testProfiles()
	procs := newScriptedProcesses(0, []string{"foo.exe"}, nil)
	// Falling back to the old default never reaches the device.
	applier := &recordingApplier{reject: &profiles[0].Combos}
	notifs := newNotifications()

	m, err := keypad.NewMonitor(profiles, applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs),
		keypad.WithNotify(notifs.Notify))
	assert.NoError(t, err)

	startMonitor(t, m)

	assert.Equal(t, "A", notifs.Next(t).Profile.Name)
	n := notifs.Next(t)
	assert.Equal(t, "Default", n.Profile.Name)
	assert.IsError(t, n.Err, keypad.ErrSerialCommunication)

	updated := []keypad.Profile{
		keypad.NewProfile("Office"),
		watching("Foo", "foo.exe"),
	}
	updated[0].Combos[3] = keypad.Single(keypad.Press(keypad.KeyF5))
	assert.NoError(t, m.UpdateProfiles(updated))

	for n.Profile.Name != "Office" {
		n = notifs.Next(t)
	}
	assert.NoError(t, n.Err)
	assert.True(t, n.Confirmed)

	procs.waitPolls(t, 3)

	var office int
	for _, n := range notifs.All() {
		if n.Profile.Name == "Office" {
			office++
		}
	}
	assert.Equal(t, 1, office, "the new default is applied once")
}

func TestMonitorSnapshotError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	done := make(chan struct{})

	procs := keypad.ProcessListerFunc(func() (keypad.ProcessSnapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 3 {
			close(done)
		}
		return keypad.ProcessSnapshot{}, errors.New("proc is gone")
	})
	applier := &recordingApplier{}

	m, err := keypad.NewMonitor(testProfiles(), applier,
		keypad.WithPollInterval(time.Millisecond),
		keypad.WithProcessLister(procs))
	assert.NoError(t, err)

	stop := startMonitor(t, m)
	waitDone(t, done)
	stop()

	assert.Equal(t, 0, len(applier.Applied()))
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	m, err := keypad.NewMonitor(testProfiles(), &recordingApplier{},
		keypad.WithPollInterval(time.Hour),
		keypad.WithProcessLister(newScriptedProcesses(0, nil)))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx, slogt.New(t)) }()

	cancel()
	select {
	case err := <-errCh:
		assert.IsError(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestNewMonitorNoProfiles(t *testing.T) {
	_, err := keypad.NewMonitor(nil, &recordingApplier{})
	assert.IsError(t, err, keypad.ErrNoProfiles)
}

func TestNewMonitorNoApplier(t *testing.T) {
	_, err := keypad.NewMonitor(testProfiles(), nil)
	assert.IsError(t, err, keypad.ErrNoApplier)
}
