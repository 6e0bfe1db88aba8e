package keypad

import (
	"fmt"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// ProcessSnapshot counts running processes by executable name at one point
// in time. Names compare case-insensitively and without their directory.
type ProcessSnapshot struct {
	counts map[string]int
}

// NewProcessSnapshot builds a snapshot from a list of executable names, one
// entry per running process.
func NewProcessSnapshot(names ...string) ProcessSnapshot {
	counts := make(map[string]int, len(names))
	for _, name := range names {
		if key := processKey(name); key != "" {
			counts[key]++
		}
	}
	return ProcessSnapshot{counts: counts}
}

func processKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToLower(filepath.Base(name))
}

// commNameLen is how much of an executable name Linux keeps in
// /proc/<pid>/stat.
const commNameLen = 15

// Count returns how many processes named name are running. Names longer than
// the Linux comm limit also match processes listed under their truncated
// form.
func (s ProcessSnapshot) Count(name string) int {
	key := processKey(name)
	n := s.counts[key]
	if len(key) > commNameLen {
		n += s.counts[key[:commNameLen]]
	}
	return n
}

// IsRunning reports whether at least one process named name is running.
func (s ProcessSnapshot) IsRunning(name string) bool {
	return s.Count(name) > 0
}

// Len returns the number of processes in the snapshot.
func (s ProcessSnapshot) Len() int {
	var n int
	for _, c := range s.counts {
		n += c
	}
	return n
}

// ProcessLister takes snapshots of the process table.
type ProcessLister interface {
	Snapshot() (ProcessSnapshot, error)
}

// ProcessListerFunc adapts a function to [ProcessLister].
type ProcessListerFunc func() (ProcessSnapshot, error)

// Snapshot implements [ProcessLister].
func (f ProcessListerFunc) Snapshot() (ProcessSnapshot, error) { return f() }

// SystemProcesses lists the processes of the running operating system. On
// Linux the names are cut to 15 bytes by the kernel; see
// [ProcessSnapshot.Count].
type SystemProcesses struct{}

// Snapshot implements [ProcessLister].
func (SystemProcesses) Snapshot() (ProcessSnapshot, error) {
	procs, err := ps.Processes()
	if err != nil {
		return ProcessSnapshot{}, fmt.Errorf("cannot list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		names = append(names, p.Executable())
	}
	return NewProcessSnapshot(names...), nil
}
