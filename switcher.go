package keypad

type switcherState uint

const (
	stateDefault switcherState = iota
	stateInProgram
)

func (s switcherState) String() string {
	switch s {
	case stateDefault:
		return "default"
	case stateInProgram:
		return "in-program"
	default:
		return "unknown"
	}
}

// Switcher decides which profile should be loaded given the programs that
// are running. The first profile it is built from is the default; the rest
// are candidates for automatic activation when they name a program.
//
// A Switcher is not safe for concurrent use.
type Switcher struct {
	fallback Profile
	auto     []Profile

	state  switcherState
	active Profile
}

// NewSwitcher builds a switcher in the default state. Profiles after the
// first that have no watched program are never activated automatically.
func NewSwitcher(profiles []Profile) (*Switcher, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}

	auto := make([]Profile, 0, len(profiles)-1)
	for _, p := range profiles[1:] {
		if _, ok := p.WatchedProgram(); ok {
			auto = append(auto, p)
		}
	}

	return &Switcher{
		fallback: profiles[0],
		auto:     auto,
		state:    stateDefault,
	}, nil
}

// Default returns the fallback profile.
func (s *Switcher) Default() Profile {
	return s.fallback
}

// Active returns the program-activated profile currently in effect, if any.
func (s *Switcher) Active() (Profile, bool) {
	if s.state != stateInProgram {
		return Profile{}, false
	}
	return s.active, true
}

// Next advances the state machine against snapshot. It returns the profile
// that must now be applied, or false when nothing needs to change.
//
// While in the default state the first candidate, in list order, whose
// program is running is activated. Once that program stops, the candidates
// are scanned again against the same snapshot, falling back to the default
// profile when none is running.
func (s *Switcher) Next(snapshot ProcessSnapshot) (Profile, bool) {
	switch s.state {
	case stateInProgram:
		program, _ := s.active.WatchedProgram()
		if snapshot.IsRunning(program) {
			return Profile{}, false
		}

		s.state = stateDefault
		s.active = Profile{}
		if p, ok := s.scan(snapshot); ok {
			return p, true
		}
		return s.fallback, true

	default:
		return s.scan(snapshot)
	}
}

func (s *Switcher) scan(snapshot ProcessSnapshot) (Profile, bool) {
	for _, p := range s.auto {
		program, _ := p.WatchedProgram()
		if snapshot.IsRunning(program) {
			s.state = stateInProgram
			s.active = p
			return p, true
		}
	}
	return Profile{}, false
}
