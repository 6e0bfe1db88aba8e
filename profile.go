package keypad

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Profile is a named assignment of combos to all buttons.
type Profile struct {
	Name   string `json:"name"`
	Combos Combos `json:"combos"`
	// AutoLaunchProgram is the executable name that activates this profile
	// when it is running. Blank means the profile is only applied manually.
	AutoLaunchProgram string `json:"auto_launch_program,omitempty"`
}

// NewProfile returns a profile with DefaultCombos.
func NewProfile(name string) Profile {
	return Profile{Name: name, Combos: DefaultCombos()}
}

// WatchedProgram returns the trimmed program name and whether there is one.
func (p Profile) WatchedProgram() (string, bool) {
	name := strings.TrimSpace(p.AutoLaunchProgram)
	return name, name != ""
}

func (p Profile) String() string {
	if program, ok := p.WatchedProgram(); ok {
		return fmt.Sprintf("%s (%s)", p.Name, program)
	}
	return p.Name
}

// UnmarshalJSON requires the combos field to be present and to hold exactly
// one valid combo per button.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type profile Profile
	var raw struct {
		profile
		Combos *Combos `json:"combos"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Combos == nil {
		return fmt.Errorf("%w: profile %q has no combos", ErrInvalidData, raw.Name)
	}
	if err := raw.Combos.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", raw.Name, err)
	}

	*p = Profile(raw.profile)
	p.Combos = *raw.Combos
	return nil
}

// UnmarshalJSON requires exactly one combo per button.
func (c *Combos) UnmarshalJSON(data []byte) error {
	var combos []KeyCombo
	if err := json.Unmarshal(data, &combos); err != nil {
		return err
	}
	if len(combos) != ButtonCount {
		return fmt.Errorf("profile needs %d combos, got %d", ButtonCount, len(combos))
	}
	copy(c[:], combos)
	return nil
}

const (
	profilesAppDir  = "KeypadControl"
	profilesSubDir  = "profiles"
	profilesFile    = "profiles.json"
	profilesDirMode = 0o755
)

// DefaultProfilesPath returns where profiles are stored for the current
// user.
func DefaultProfilesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot find user config dir: %w", err)
	}
	return filepath.Join(dir, profilesAppDir, profilesSubDir, profilesFile), nil
}

// LoadProfiles reads the profile list stored at path. A missing or empty
// file yields an empty list.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Profile{}, nil
		}
		return nil, fmt.Errorf("cannot read profiles: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []Profile{}, nil
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("cannot parse profiles %s: %w", path, err)
	}
	return profiles, nil
}

// SaveProfiles replaces the profile list stored at path, creating parent
// directories as needed.
func SaveProfiles(path string, profiles []Profile) error {
	if profiles == nil {
		profiles = []Profile{}
	}

	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode profiles: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, profilesDirMode); err != nil {
		return fmt.Errorf("cannot create profiles dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, profilesFile+".*")
	if err != nil {
		return fmt.Errorf("cannot create profiles file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write profiles: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot replace profiles: %w", err)
	}
	return nil
}

// FindProfile returns the first profile with the given name.
func FindProfile(profiles []Profile, name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}
