// Package manifest describes the native share channel: its subjects, protocol
// version and method table.
package manifest

import (
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
)

// Subjects lists the COMMS subjects the channel uses.
type Subjects struct {
	Channel    string `json:"channel" yaml:"channel"`
	Manifest   string `json:"manifest" yaml:"manifest"`
	Sheet      string `json:"sheet" yaml:"sheet"`
	Permission string `json:"permission" yaml:"permission"`
	SavedEvent string `json:"savedEvent" yaml:"savedEvent"`
}

// Argument describes one entry of a method's argument bag.
type Argument struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Method is one entry of the channel's method table.
type Method struct {
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Arguments    []Argument `json:"arguments" yaml:"arguments"`
	Returns      string     `json:"returns" yaml:"returns"`
	FailureCodes []string   `json:"failureCodes" yaml:"failureCodes"`
}

// Manifest is the root channel descriptor.
type Manifest struct {
	Name        string            `json:"name" yaml:"name"`
	Version     string            `json:"version" yaml:"version"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Subjects    Subjects          `json:"subjects" yaml:"subjects"`
	Methods     map[string]Method `json:"methods" yaml:"methods"`
}

// Has reports whether the method table lists name.
func (m *Manifest) Has(name string) bool {
	_, ok := m.Methods[name]
	return ok
}

// SemVer parses the manifest's protocol version.
func (m *Manifest) SemVer() (*masterminds.Version, error) {
	v, err := masterminds.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version %q: %w", logPrefix, m.Version, err)
	}
	return v, nil
}

// Compatible reports whether the manifest version satisfies constraint
// (e.g. "^1.0.0", ">=1.2, <2").
func (m *Manifest) Compatible(constraint string) (bool, error) {
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	v, err := m.SemVer()
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// WithSubjects returns a copy with every non-empty field of override applied.
func (m *Manifest) WithSubjects(override Subjects) *Manifest {
	merged := *m
	if override.Channel != "" {
		merged.Subjects.Channel = override.Channel
	}
	if override.Manifest != "" {
		merged.Subjects.Manifest = override.Manifest
	}
	if override.Sheet != "" {
		merged.Subjects.Sheet = override.Sheet
	}
	if override.Permission != "" {
		merged.Subjects.Permission = override.Permission
	}
	if override.SavedEvent != "" {
		merged.Subjects.SavedEvent = override.SavedEvent
	}
	return &merged
}
