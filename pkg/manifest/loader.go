package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/dispatcher"
)

const logPrefix = "manifest:loader"

// Load reads the manifest from the first readable path, falling back to
// config/manifest.yaml, manifest.yaml and finally the built-in default.
// YAML and JSON files are both accepted. Missing subjects are filled from the
// default.
func Load(paths ...string) (*Manifest, error) {
	all := make([]string, 0, len(paths)+2)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	explicit := len(all)
	all = append(all, "config/manifest.yaml", "manifest.yaml")

	for i, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			if i < explicit {
				return nil, fmt.Errorf("%s - read %s: %w", logPrefix, p, err)
			}
			continue
		}

		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s - %s: %w", logPrefix, p, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded manifest %s@%s from %s", logPrefix, m.Name, m.Version, p))
		return m, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default manifest", logPrefix))
	return Default(), nil
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	filled := Default().WithSubjects(Subjects{})
	filled.Name, filled.Version, filled.Description = m.Name, m.Version, m.Description
	if m.Methods != nil {
		filled.Methods = m.Methods
	}
	filled = filled.WithSubjects(m.Subjects)
	if err := filled.Validate(); err != nil {
		return nil, err
	}
	return filled, nil
}

// Validate checks the name, the version, and that every listed method is
// one the dispatcher serves.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%s - manifest name is required", logPrefix)
	}
	if _, err := m.SemVer(); err != nil {
		return err
	}
	if len(m.Methods) == 0 {
		return fmt.Errorf("%s - manifest lists no methods", logPrefix)
	}
	for name := range m.Methods {
		if name != dispatcher.MethodShareImage && name != dispatcher.MethodSaveImageToGallery {
			return fmt.Errorf("%s - method %q is not served by this channel", logPrefix, name)
		}
	}
	return nil
}

// MethodNames returns the method table's names in sorted order.
func (m *Manifest) MethodNames() []string {
	names := make([]string, 0, len(m.Methods))
	for name := range m.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the built-in manifest.
func Default() *Manifest {
	return &Manifest{
		Name:        "native-share",
		Version:     "1.0.0",
		Description: "Share images through the platform share sheet and save them to the photo library",
		Subjects: Subjects{
			Channel:    commsutil.SubjectChannel,
			Manifest:   commsutil.SubjectManifest,
			Sheet:      commsutil.SubjectSheet,
			Permission: commsutil.SubjectPermission,
			SavedEvent: commsutil.SubjectSavedEvent,
		},
		Methods: map[string]Method{
			dispatcher.MethodShareImage: {
				Description: "Present the share sheet for an image",
				Arguments: []Argument{
					{Name: "imagePath", Type: "string", Description: "Local path of the image"},
					{Name: "subject", Type: "string", Description: "Label shown with the image"},
				},
				Returns: "bool",
				FailureCodes: []string{
					string(dispatcher.CodeInvalidArguments),
					string(dispatcher.CodeResourceNotFound),
					string(dispatcher.CodeNoPresentationContext),
				},
			},
			dispatcher.MethodSaveImageToGallery: {
				Description: "Save an image to the photo library",
				Arguments: []Argument{
					{Name: "imagePath", Type: "string", Description: "Local path of the image"},
				},
				Returns: "bool",
				FailureCodes: []string{
					string(dispatcher.CodeInvalidArguments),
					string(dispatcher.CodeResourceNotFound),
					string(dispatcher.CodePermissionDenied),
					string(dispatcher.CodeOperationFailed),
				},
			},
		},
	}
}
